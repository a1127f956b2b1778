// Package jwt owns token encoding and signing key material for the ArenaX
// auth core. [Codec] signs and verifies the access/refresh token pair;
// [Keyring] holds the current and previous signing keys as an immutable
// snapshot so rotation never tears a concurrent verification.
package jwt
