package dto

import "github.com/EternisAI/crooked-keys/internal/clients"

type ListClientsResponse struct {
	Clients []clients.Summary `json:"clients"`
	Count   int               `json:"count"`
}

type RevokeClientResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Client  RevokedClient `json:"client"`
}

type RevokedClient struct {
	Name   string `json:"name"`
	Device string `json:"device"`
}
