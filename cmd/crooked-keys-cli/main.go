package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/EternisAI/crooked-keys/internal/wgconfig"
	"github.com/urfave/cli/v2"
)

var AppVersion string

var flagServer = &cli.StringFlag{
	Name:    "server",
	Value:   "http://127.0.0.1:3001",
	Usage:   "crooked-keys server base URL",
	EnvVars: []string{"CROOKED_KEYS_SERVER"},
}

var flagPrefix = &cli.StringFlag{
	Name:  "prefix",
	Value: "/api/crooked-keys",
	Usage: "API path prefix the server is mounted under",
}

var flagOutDir = &cli.StringFlag{
	Name:  "out-dir",
	Value: ".",
	Usage: "Directory to write the WireGuard config to",
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "crooked-keys-cli",
		Usage:   "Request, list and revoke VPN credentials on a crooked-keys server",
		Version: AppVersion,
		Flags:   []cli.Flag{flagServer, flagPrefix},
		Commands: []*cli.Command{
			{
				Name:  "request",
				Usage: "Issue a new credential and save its config",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true, Usage: "Person the credential is for"},
					&cli.StringFlag{Name: "device", Required: true, Usage: "Device the credential is for"},
					flagOutDir,
				},
				Action: runRequest,
			},
			{
				Name:   "list",
				Usage:  "List issued credentials",
				Action: runList,
			},
			{
				Name:      "revoke",
				Usage:     "Revoke a credential",
				ArgsUsage: "<id>",
				Action:    runRevoke,
			},
			{
				Name:      "download",
				Usage:     "Download the config of an active credential",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{flagOutDir},
				Action:    runDownload,
			},
		},
	}
}

func clientFromContext(cCtx *cli.Context) *apiClient {
	return newAPIClient(cCtx.String(flagServer.Name), cCtx.String(flagPrefix.Name))
}

func idArg(cCtx *cli.Context) (string, error) {
	if cCtx.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one client id")
	}
	return cCtx.Args().First(), nil
}

func runRequest(cCtx *cli.Context) error {
	resp, err := clientFromContext(cCtx).Request(cCtx.String("name"), cCtx.String("device"))
	if err != nil {
		return err
	}

	path, err := writeConfig(cCtx.String(flagOutDir.Name), wgconfig.Filename(resp.Client.Name, resp.Client.Device), resp.Config)
	if err != nil {
		return err
	}

	out := cCtx.App.Writer
	fmt.Fprintln(out, "VPN credential issued")
	fmt.Fprintf(out, "  ID:         %s\n", resp.Client.ID)
	fmt.Fprintf(out, "  Name:       %s (%s)\n", resp.Client.Name, resp.Client.Device)
	fmt.Fprintf(out, "  IP address: %s\n", resp.Client.IPAddress)
	fmt.Fprintf(out, "  Config:     %s\n", path)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "1. %s\n2. %s\n3. %s\n", resp.Instructions.Step1, resp.Instructions.Step2, resp.Instructions.Step3)
	return nil
}

func runList(cCtx *cli.Context) error {
	resp, err := clientFromContext(cCtx).List()
	if err != nil {
		return err
	}
	printClients(cCtx.App.Writer, resp.Clients)
	fmt.Fprintf(cCtx.App.Writer, "\n%d client(s)\n", resp.Count)
	return nil
}

func runRevoke(cCtx *cli.Context) error {
	id, err := idArg(cCtx)
	if err != nil {
		return err
	}
	resp, err := clientFromContext(cCtx).Revoke(id)
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, resp.Message)
	return nil
}

func runDownload(cCtx *cli.Context) error {
	id, err := idArg(cCtx)
	if err != nil {
		return err
	}
	config, filename, err := clientFromContext(cCtx).Download(id)
	if err != nil {
		return err
	}
	path, err := writeConfig(cCtx.String(flagOutDir.Name), filename, config)
	if err != nil {
		return err
	}
	fmt.Fprintf(cCtx.App.Writer, "Config saved to %s\n", path)
	return nil
}

// writeConfig stores a config holding a private key, so it is owner-only.
func writeConfig(dir, filename, content string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}
