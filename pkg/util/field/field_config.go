// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package field

import (
	"math/big"

	bls12377 "github.com/consensys/gnark-crypto/ecc/bls12-377/fr"
	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	bn254 "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	grumpkin "github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/field/goldilocks"
)

// DEFAULT_FR_MEMORY_SIZE is the scratch area reserved for the field arithmetic
// runtime which precedes the raw prime in linear memory.
const DEFAULT_FR_MEMORY_SIZE = 1948

// BN128 is the scalar field of the BN254 curve, and the default prime.
var BN128 = Config{"bn128", bn254.Modulus}

// BLS12_381 is the scalar field of the BLS12-381 curve.
var BLS12_381 = Config{"bls12381", bls12381.Modulus}

// BLS12_377 is the scalar field of the BLS12-377 curve.
var BLS12_377 = Config{"bls12377", bls12377.Modulus}

// GRUMPKIN is the scalar field of the Grumpkin curve (i.e. the base field of
// BN254).
var GRUMPKIN = Config{"grumpkin", grumpkin.Modulus}

// GOLDILOCKS is the 64-bit prime field 2^64 - 2^32 + 1.
var GOLDILOCKS = Config{"goldilocks", goldilocks.Modulus}

// FIELD_CONFIGS determines the set of supported primes.
var FIELD_CONFIGS = []Config{
	BN128,
	BLS12_381,
	BLS12_377,
	GRUMPKIN,
	GOLDILOCKS,
}

// Config identifies a prime field targeted by the generated code.
type Config struct {
	// Name used to select the prime on the command line and in circuit
	// documents.
	Name string
	// Modulus returns a fresh copy of the field modulus.
	Modulus func() *big.Int
}

// GetConfig returns the field configuration corresponding with the given
// name, or nil no such config exists.
func GetConfig(name string) *Config {
	for i := range FIELD_CONFIGS {
		if FIELD_CONFIGS[i].Name == name {
			return &FIELD_CONFIGS[i]
		}
	}
	//
	return nil
}

// ConfigOf returns the field configuration whose modulus matches the given
// prime, or nil if no such config exists.
func ConfigOf(prime *big.Int) *Config {
	for i := range FIELD_CONFIGS {
		if FIELD_CONFIGS[i].Modulus().Cmp(prime) == 0 {
			return &FIELD_CONFIGS[i]
		}
	}
	//
	return nil
}

// Prime returns the decimal representation of the modulus.
func (c *Config) Prime() string {
	return c.Modulus().String()
}

// BitWidth returns the number of bits in the modulus.
func (c *Config) BitWidth() uint {
	return uint(c.Modulus().BitLen())
}

// Size32 returns the number of 32-bit words required to hold one field
// element.
func (c *Config) Size32() uint {
	return (c.BitWidth() + 31) / 32
}

// Size64 returns the number of 64-bit limbs used by the Montgomery
// representation of a field element.
func (c *Config) Size64() uint {
	return (c.BitWidth() + 63) / 64
}

// Montgomery returns the Montgomery form of a given value, that is n·R mod p
// where R = 2^(64·Size64()).  Negative values are first reduced into the
// field.
func (c *Config) Montgomery(n *big.Int) *big.Int {
	var (
		p = c.Modulus()
		r = new(big.Int).Lsh(big.NewInt(1), 64*c.Size64())
		m = new(big.Int).Mod(n, p)
	)
	//
	m.Mul(m, r)
	//
	return m.Mod(m, p)
}

// Centered returns the representative of n in the range (-p/2, p/2].
func (c *Config) Centered(n *big.Int) *big.Int {
	var (
		p    = c.Modulus()
		m    = new(big.Int).Mod(n, p)
		half = new(big.Int).Rsh(p, 1)
	)
	//
	if m.Cmp(half) > 0 {
		m.Sub(m, p)
	}
	//
	return m
}
