// Package identity owns Parley's user records and password verification.
//
// Users are immutable after registration apart from password changes, which are
// out of scope here. Password hashes use Argon2id in PHC string format; the
// store never sees a plain password.
package identity
