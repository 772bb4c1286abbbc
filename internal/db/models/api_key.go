// Package models - api_key.go defines the APIKey model shared by the three
// credential kinds (user, process, admin) and the parsing helpers for the
// kind and environment enumerations.
package models

import (
	"fmt"
	"strings"
	"time"
)

// KeyKind identifies which credential class a key belongs to. Each kind is
// stored in its own table but all kinds share one global token namespace.
type KeyKind string

const (
	KeyKindUser    KeyKind = "USER"
	KeyKindProcess KeyKind = "PROCESS"
	KeyKindAdmin   KeyKind = "ADMIN"
)

// ParseKeyKind normalizes a client-supplied kind string.
func ParseKeyKind(s string) (KeyKind, error) {
	switch KeyKind(strings.ToUpper(strings.TrimSpace(s))) {
	case KeyKindUser:
		return KeyKindUser, nil
	case KeyKindProcess:
		return KeyKindProcess, nil
	case KeyKindAdmin:
		return KeyKindAdmin, nil
	}
	return "", fmt.Errorf("invalid key kind %q", s)
}

// Environment is the deployment environment a process key is scoped to.
type Environment string

const (
	EnvDevelopment Environment = "DEVELOPMENT"
	EnvProduction  Environment = "PRODUCTION"
	EnvTesting     Environment = "TESTING"
)

// ParseEnvironment normalizes a client-supplied environment string.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToUpper(strings.TrimSpace(s))) {
	case EnvDevelopment:
		return EnvDevelopment, nil
	case EnvProduction:
		return EnvProduction, nil
	case EnvTesting:
		return EnvTesting, nil
	}
	return "", fmt.Errorf("invalid environment %q", s)
}

// APIKey represents one issued credential. The token is the primary
// identifier: 64 lowercase hex characters, unique across every kind and all
// time. ProcessName and Environment are set only for process kind keys.
type APIKey struct {
	Token         string       `json:"token"`
	OwnerEmail    string       `json:"owner_email"`
	Kind          KeyKind      `json:"kind"`
	ProcessName   *string      `json:"process_name,omitempty"`
	Environment   *Environment `json:"environment,omitempty"`
	Active        bool         `json:"active"`
	CreatedAt     time.Time    `json:"created_at"`
	DeactivatedAt *time.Time   `json:"deactivated_at,omitempty"`
}
