package firestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// isNotFound returns true if the error is a Firestore NotFound error.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return status.Code(err) == codes.NotFound
}

// serviceAccount is the subset of a credential file checked before use.
type serviceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
}

// validateCredentialFile checks that path exists and holds a Google
// credential JSON document with a type field.
func validateCredentialFile(path string) error {
	if path == "" {
		return errors.New("no credential file configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading credential file: %w", err)
	}
	var sa serviceAccount
	if err := json.Unmarshal(data, &sa); err != nil {
		return fmt.Errorf("parsing credential file: %w", err)
	}
	if sa.Type == "" {
		return errors.New("credential file has no type field")
	}
	return nil
}
