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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Config_01(t *testing.T) {
	config := GetConfig("bn128")
	require.NotNil(t, config)
	assert.Equal(t, "21888242871839275222246405745257275088548364400416034343698204186575808495617", config.Prime())
	assert.Equal(t, uint(254), config.BitWidth())
	assert.Equal(t, uint(8), config.Size32())
	assert.Equal(t, uint(4), config.Size64())
}

func Test_Config_02(t *testing.T) {
	config := GetConfig("goldilocks")
	require.NotNil(t, config)
	assert.Equal(t, "18446744069414584321", config.Prime())
	assert.Equal(t, uint(2), config.Size32())
	assert.Equal(t, uint(1), config.Size64())
}

func Test_Config_03(t *testing.T) {
	assert.Nil(t, GetConfig("secp256k1"))
	//
	for _, c := range FIELD_CONFIGS {
		found := ConfigOf(c.Modulus())
		require.NotNil(t, found)
		assert.Equal(t, c.Name, found.Name)
	}
	//
	assert.Nil(t, ConfigOf(big.NewInt(251)))
}

func Test_Config_04(t *testing.T) {
	var (
		config = GetConfig("goldilocks")
		p      = config.Modulus()
	)
	// R = 2^64 mod p = 2^32 - 1
	assert.Equal(t, "4294967295", config.Montgomery(big.NewInt(1)).String())
	assert.Equal(t, "0", config.Montgomery(p).String())
	// Centered
	assert.Equal(t, "-1", config.Centered(new(big.Int).Sub(p, big.NewInt(1))).String())
	assert.Equal(t, "3", config.Centered(big.NewInt(3)).String())
	assert.Equal(t, "-2", config.Centered(big.NewInt(-2)).String())
}
