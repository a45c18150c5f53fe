package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/EternisAI/crooked-keys/internal/clients"
)

func printClients(out io.Writer, list []clients.Summary) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDEVICE\tIP ADDRESS\tSTATUS\tCREATED")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Name, c.Device, c.IPAddress, c.Status, c.CreatedAt.Local().Format(time.DateTime))
	}
	tw.Flush()
}
