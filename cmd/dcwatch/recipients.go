package main

import (
	"fmt"

	"go.mau.fi/whatsmeow/types"

	"github.com/rubiojr/dcwatch/internal/client"
)

func parseRecipients(in []string) ([]types.JID, error) {
	jids := make([]types.JID, 0, len(in))
	for _, r := range in {
		jid, err := client.ParseRecipient(r)
		if err != nil {
			return nil, fmt.Errorf("invalid whatsapp recipient %q: %w", r, err)
		}
		jids = append(jids, jid)
	}
	return jids, nil
}
