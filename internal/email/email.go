// Package email holds address helpers shared by the directory and gateways.
package email

import (
	"errors"
	"net/mail"
	"strings"
)

// ErrInvalidAddress is returned for addresses that do not parse
var ErrInvalidAddress = errors.New("invalid email address")

// Normalize parses addr and returns the bare, lower-cased address
func Normalize(addr string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(addr))
	if err != nil {
		return "", ErrInvalidAddress
	}
	at := strings.LastIndex(parsed.Address, "@")
	if at <= 0 || at == len(parsed.Address)-1 {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(parsed.Address), nil
}

// Domain returns the domain part of addr, or fallback if addr is invalid
func Domain(addr, fallback string) string {
	norm, err := Normalize(addr)
	if err != nil {
		return fallback
	}
	return norm[strings.LastIndex(norm, "@")+1:]
}

// FirstName returns the first word of a display name. When name is empty
// the local part of addr is used instead.
func FirstName(name, addr string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	if at := strings.Index(addr, "@"); at > 0 {
		return addr[:at]
	}
	return ""
}

// Format renders a display name and address as an RFC 5322 mailbox
func Format(name, addr string) string {
	if name == "" {
		return addr
	}
	return (&mail.Address{Name: name, Address: addr}).String()
}
