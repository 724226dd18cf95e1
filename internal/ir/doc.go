// Package ir provides the wire-level types shared by every pinsync package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Direction codes match the host editor's slot codes (1 = input, 2 = output)
//   - Schema names are NFC normalized on decode so restore-by-name is stable
//   - All JSON tags use snake_case, matching what the host persists
package ir
