// Package naming turns user-supplied display names into names the remote
// platform accepts.
//
// The platform only takes short, lower-case, DNS-label-like names, and guest
// hostnames are derived from the same value, so [Normalize] is deterministic
// and its output never exceeds [MaxLength] characters.
package naming
