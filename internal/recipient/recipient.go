// Package recipient parses receiving addresses of the form
// {prefix}+{backupType}.{clientId}.{clientKey}@{domain}.
package recipient

import (
	"regexp"
	"strings"

	"github.com/amekkawi/arq-console/internal/models"
)

var (
	backupTypePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)
	clientIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	clientKeyPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
)

// Filter narrows matches. Empty fields are not checked.
type Filter struct {
	Prefix     string
	Domain     string
	BackupType string
	ClientID   string
	ClientKey  string
}

func IsValidBackupType(s string) bool { return backupTypePattern.MatchString(s) }
func IsValidClientID(s string) bool   { return clientIDPattern.MatchString(s) }
func IsValidClientKey(s string) bool  { return clientKeyPattern.MatchString(s) }

// Parse splits address into its routing parts. It reports false for any
// address that does not follow the grammar or fails filter.
func Parse(address string, filter *Filter) (*models.EmailRecipient, bool) {
	atSplit := strings.Split(address, "@")
	if len(atSplit) != 2 {
		return nil, false
	}
	domain := atSplit[1]

	prefix, rest, ok := strings.Cut(atSplit[0], "+")
	if !ok {
		return nil, false
	}

	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return nil, false
	}
	backupType, clientID, clientKey := parts[0], parts[1], parts[2]

	if !IsValidBackupType(backupType) || !IsValidClientID(clientID) || !IsValidClientKey(clientKey) {
		return nil, false
	}

	if filter != nil {
		if filter.Prefix != "" && filter.Prefix != prefix {
			return nil, false
		}
		if filter.Domain != "" && filter.Domain != domain {
			return nil, false
		}
		if filter.BackupType != "" && filter.BackupType != backupType {
			return nil, false
		}
		if filter.ClientID != "" && filter.ClientID != clientID {
			return nil, false
		}
		if filter.ClientKey != "" && filter.ClientKey != clientKey {
			return nil, false
		}
	}

	return &models.EmailRecipient{
		Original:   address,
		Prefix:     prefix,
		BackupType: backupType,
		ClientID:   clientID,
		ClientKey:  clientKey,
		Domain:     domain,
	}, true
}

// ParseAll parses every address and drops those that do not match.
func ParseAll(addresses []string, filter *Filter) []models.EmailRecipient {
	out := make([]models.EmailRecipient, 0, len(addresses))
	for _, addr := range addresses {
		if r, ok := Parse(addr, filter); ok {
			out = append(out, *r)
		}
	}
	return out
}

// Format builds the receiving address for a client.
func Format(prefix, backupType, clientID, clientKey, domain string) string {
	return prefix + "+" + backupType + "." + clientID + "." + clientKey + "@" + domain
}
