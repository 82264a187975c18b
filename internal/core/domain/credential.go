package domain

import (
	"fmt"
	"log/slog"
	"strings"
)

// credentialSeparator splits the fields of a credential list line.
const credentialSeparator = ":"

// CredentialTuple is one identifier/secret/region entry.
//
// The secret is never rendered by String or LogValue.
type CredentialTuple struct {
	Identifier string
	Secret     string
	Region     string
}

// ParseCredentialLine parses a single "identifier:secret:region" line.
//
// Surrounding whitespace is trimmed. Fields past the third are ignored.
// A line that yields fewer than three non-empty fields returns ErrMalformedInput.
func ParseCredentialLine(line string) (CredentialTuple, error) {
	parts := strings.Split(strings.TrimSpace(line), credentialSeparator)

	var fields [3]string
	for i := 0; i < len(fields) && i < len(parts); i++ {
		fields[i] = strings.TrimSpace(parts[i])
	}

	tuple := CredentialTuple{
		Identifier: fields[0],
		Secret:     fields[1],
		Region:     fields[2],
	}
	if err := tuple.Validate(); err != nil {
		return CredentialTuple{}, err
	}
	return tuple, nil
}

// Validate checks that all three fields are present.
func (c CredentialTuple) Validate() error {
	var missing []string
	if c.Identifier == "" {
		missing = append(missing, "identifier")
	}
	if c.Secret == "" {
		missing = append(missing, "secret")
	}
	if c.Region == "" {
		missing = append(missing, "region")
	}
	if len(missing) > 0 {
		return ErrMalformedInput.WithDetails("missing " + strings.Join(missing, ", "))
	}
	return nil
}

// String returns identifier@region.
func (c CredentialTuple) String() string {
	return fmt.Sprintf("%s@%s", c.Identifier, c.Region)
}

// LogValue implements slog.LogValuer so tuples can be logged without the secret.
func (c CredentialTuple) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("identifier", c.Identifier),
		slog.String("region", c.Region),
	)
}
