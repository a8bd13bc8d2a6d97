// Package access gives callers plaintext views of case files without caring
// whether the case is encrypted.
//
// An [Accessor] is scoped to one case. [Accessor.GetFilePath] returns a
// [PlainPath] for unencrypted files and an [*EncryptedPath] for artifacts.
// Both satisfy [File]. An EncryptedPath decrypts on demand into memory, or
// into a private temporary file for consumers that need a real path.
//
// Every temporary file materialized through an Accessor is deleted by
// [Accessor.Close]. [With] runs a function inside an Accessor scope and
// closes it on every exit path, including panics.
package access
