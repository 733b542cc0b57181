package util

import "strings"

// SafeTruncate returns at most the first maxLen bytes of s. Negative maxLen
// yields an empty string.
//
// It is used to log a recognisable prefix of codes and tokens without
// writing the full credential.
//
//	SafeTruncate("mock_access_token_abc", 8) // "mock_acc"
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// TokenPrefixLength is the number of characters of a credential that may be
// written to logs.
const TokenPrefixLength = 8

// LogPrefix truncates a credential to TokenPrefixLength for logging.
func LogPrefix(credential string) string {
	return SafeTruncate(credential, TokenPrefixLength)
}

// TokenLogPrefix is LogPrefix applied to the random part of a token minted
// with tokenPrefix.
//
//	TokenLogPrefix("mock_access_token_abcdefghij", "mock_access_token_") // "mock_access_token_abcdefgh"
func TokenLogPrefix(token, tokenPrefix string) string {
	rest, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok || tokenPrefix == "" {
		return LogPrefix(token)
	}
	return tokenPrefix + LogPrefix(rest)
}
