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
	"crypto/rand"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkstl/pkstl/primitives"
)

var (
	benchMessages  int
	benchFrameSize int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure local Seal/Open throughput",
	Long: `bench runs Seal followed by Open over a derived KeyMaterial,
entirely in-process, to give a rough AEAD throughput figure for this
machine without needing a second peer.`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().IntVar(&benchMessages, "messages", 10000, "Number of frames to seal and open")
	benchCmd.Flags().IntVar(&benchFrameSize, "size", 512, "Plaintext size per frame, in bytes")
}

func runBench(cmd *cobra.Command, args []string) error {
	a, err := primitives.GenerateEphemeral()
	if err != nil {
		return fmt.Errorf("generate ephemeral: %w", err)
	}
	b, err := primitives.GenerateEphemeral()
	if err != nil {
		return fmt.Errorf("generate ephemeral: %w", err)
	}
	shared, err := a.DeriveShared(b.PublicKey())
	if err != nil {
		return fmt.Errorf("derive shared secret: %w", err)
	}
	km, err := primitives.DeriveKeyMaterial(shared, []byte("pkstlctl-bench-salt"))
	if err != nil {
		return fmt.Errorf("derive key material: %w", err)
	}

	plaintext := make([]byte, benchFrameSize)
	if _, err := rand.Read(plaintext); err != nil {
		return fmt.Errorf("fill plaintext: %w", err)
	}

	sealStart := time.Now()
	ciphertexts := make([][]byte, benchMessages)
	for i := 0; i < benchMessages; i++ {
		ct, err := primitives.Seal(km, uint64(i), plaintext)
		if err != nil {
			return fmt.Errorf("seal frame %d: %w", i, err)
		}
		ciphertexts[i] = ct
	}
	sealElapsed := time.Since(sealStart)

	openStart := time.Now()
	for i := 0; i < benchMessages; i++ {
		if _, err := primitives.Open(km, uint64(i), ciphertexts[i]); err != nil {
			return fmt.Errorf("open frame %d: %w", i, err)
		}
	}
	openElapsed := time.Since(openStart)

	totalBytes := float64(benchMessages) * float64(benchFrameSize)
	fmt.Printf("frames: %d, frame size: %d bytes\n", benchMessages, benchFrameSize)
	fmt.Printf("seal: %s total, %.2f MB/s\n", sealElapsed, throughputMBps(totalBytes, sealElapsed))
	fmt.Printf("open: %s total, %.2f MB/s\n", openElapsed, throughputMBps(totalBytes, openElapsed))
	return nil
}

func throughputMBps(totalBytes float64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return (totalBytes / (1024 * 1024)) / elapsed.Seconds()
}
