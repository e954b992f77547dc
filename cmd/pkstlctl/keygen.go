// Copyright (C) 2025 pkstl-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/pkstl/pkstl/primitives"
)

var keygenOutput string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a long-term Ed25519 identity keypair",
	Long: `Generate the long-term Ed25519 signing keypair a session uses to
authenticate its CONNECT/ACK messages (spec.md §3.1's signer, never
stored on the session itself).`,
	Example: `  # Generate a key and write the 32-byte seed to identity.key
  pkstlctl keygen --output identity.key`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenOutput, "output", "o", "identity.key", "Path to write the raw 32-byte seed")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return fmt.Errorf("generate seed: %w", err)
	}

	signer, err := primitives.SignerFromSeed(seed)
	if err != nil {
		return fmt.Errorf("derive signer: %w", err)
	}

	if err := os.WriteFile(keygenOutput, seed, 0o600); err != nil {
		return fmt.Errorf("write seed file: %w", err)
	}

	pub := signer.PublicKey()
	fmt.Printf("Identity key written to: %s\n", keygenOutput)
	fmt.Printf("  Public key (base58): %s\n", base58.Encode(pub[:]))
	return nil
}

// loadSigner reads a raw 32-byte Ed25519 seed from path and derives the
// long-term Signer from it.
func loadSigner(path string) (*primitives.Signer, error) {
	seed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key %s: %w", path, err)
	}
	return primitives.SignerFromSeed(seed)
}
