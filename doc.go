/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package sdjwt implements Selective Disclosure for JWTs (SD-JWT).
//
// Packages for end developer usage
//
// issuer: creates SD-JWTs. A disclosure frame selects the claims and array elements that become
// selectively disclosable, and may add decoy digests at any level.
//
// holder: parses SD-JWTs received from the Issuer and creates presentations. A presentation frame
// selects the claims to disclose; the holder resolves the minimal set of disclosures for it.
//
// verifier: verifies presentations and reconstructs the disclosed claims.
//
// common: the shared model. Disclosures, digests, frames, the compact combined format and the
// reconstruction of claims from an SD-JWT payload and its disclosures.
//
// jwt: compact JWS signing and parsing, with Ed25519, RS256 and ES256 signers and verifiers.
//
// Basic workflow
//
//	1) The Issuer calls issuer.New with the claims and a disclosure frame, then serializes the result.
//	2) The Holder calls holder.Parse to check the SD-JWT and see the disclosable claims.
//	3) The Holder calls holder.CreatePresentation with a presentation frame and optional key binding.
//	4) The Verifier calls verifier.Parse to get the disclosed claims.
package sdjwt
