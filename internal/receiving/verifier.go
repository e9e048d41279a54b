// Package receiving decides whether a delivery addressed to the service
// belongs to a known client, and accepts email deliveries over SMTP.
package receiving

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/recipient"
	"github.com/amekkawi/arq-console/internal/store"
)

type ClientStatus string

const (
	ClientNotFound    ClientStatus = "NOT_FOUND"
	ClientMatch       ClientStatus = "MATCH"
	ClientKeyMismatch ClientStatus = "KEY_MISMATCH"
)

type RecipientStatus string

const (
	NoMatches              RecipientStatus = "NO_MATCHES"
	RecipientClientMissing RecipientStatus = "CLIENT_NOT_FOUND"
	RecipientKeyMismatch   RecipientStatus = "CLIENT_KEY_MISMATCH"
	RecipientKeyMatched    RecipientStatus = "CLIENT_KEY_MATCHED"
)

type VerifyResult struct {
	Status      RecipientStatus
	Matching    []models.EmailRecipient
	NonMatching []string
}

// Verifier checks client credentials against the client registry.
type Verifier struct {
	clients store.ClientStore
	filter  recipient.Filter
}

// NewVerifier returns a Verifier that only accepts recipients addressed to
// prefix and domain.
func NewVerifier(clients store.ClientStore, prefix, domain string) *Verifier {
	return &Verifier{
		clients: clients,
		filter:  recipient.Filter{Prefix: prefix, Domain: domain},
	}
}

// Filter returns the prefix and domain filter applied to recipients.
func (v *Verifier) Filter() recipient.Filter {
	return v.filter
}

func (v *Verifier) VerifyClient(ctx context.Context, clientID, clientKey string) (ClientStatus, error) {
	client, err := v.clients.GetClient(ctx, clientID, []string{store.AttrClientID, store.AttrClientKey})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ClientNotFound, nil
		}
		return "", fmt.Errorf("get client %s: %w", clientID, err)
	}
	if client.ClientKey != clientKey {
		return ClientKeyMismatch, nil
	}
	return ClientMatch, nil
}

// VerifyEmailRecipients parses recipients and verifies the first one that
// matches the receiving address format. Further matches are reported in
// Matching but not verified.
func (v *Verifier) VerifyEmailRecipients(ctx context.Context, recipients []string) (*VerifyResult, error) {
	result := &VerifyResult{
		Matching:    []models.EmailRecipient{},
		NonMatching: []string{},
	}
	for _, addr := range recipients {
		if r, ok := recipient.Parse(addr, &v.filter); ok {
			result.Matching = append(result.Matching, *r)
		} else {
			result.NonMatching = append(result.NonMatching, addr)
		}
	}

	if len(result.Matching) == 0 {
		result.Status = NoMatches
		return result, nil
	}
	if len(result.Matching) > 1 {
		slog.Warn("multiple matching recipients, verifying first only",
			"client_id", result.Matching[0].ClientID, "matching", len(result.Matching))
	}

	first := result.Matching[0]
	status, err := v.VerifyClient(ctx, first.ClientID, first.ClientKey)
	if err != nil {
		return nil, err
	}
	switch status {
	case ClientMatch:
		result.Status = RecipientKeyMatched
	case ClientNotFound:
		result.Status = RecipientClientMissing
	default:
		result.Status = RecipientKeyMismatch
	}
	return result, nil
}
