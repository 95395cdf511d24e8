// Copyright 2021-2024 The Connect Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sessionwire is a compact binary codec for authenticated principals
// stored in sessions.
//
// An Engine keeps a registry of Go types and the Serializers that write them.
// Every value the engine writes is prefixed with its type's tag, so a
// serializer can hand nested values of unknown concrete type back to the
// engine and get them back intact. PrincipalCodec relies on this for a
// Principal's authorities: they're written one by one through the engine and
// read back into a plain slice, so Authority implementations never need to be
// ordered or comparable.
//
// Register everything during startup:
//
//	engine, err := sessionwire.NewEngine(
//		sessionwire.WithCustomizations(
//			sessionwire.AuthorityRegistration,
//			sessionwire.PrincipalRegistration,
//		),
//	)
//	if err != nil {
//		return err
//	}
//	data, err := engine.Marshal(principal)
//
// Errors are *Error values; use CodeOf to tell CodeCorruptData and
// CodeTypeMismatch (bad input) apart from CodeUnregisteredType and
// CodeInvalidArgument (bad configuration).
package sessionwire
