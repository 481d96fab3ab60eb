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
package binfile

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/consensys/go-witgen/pkg/circuit"
	"github.com/vmihailenco/msgpack/v5"
)

// ============================================================================
// Binary File Format
// ============================================================================

// BinaryFile is a programatic representation of an underlying binary file.
type BinaryFile struct {
	// Header for the binary file
	Header Header
	// The circuit document itself.
	Document Document
}

// NewBinaryFile constructs a new binary file with the default header for the
// currently supported version.
func NewBinaryFile(metadata []byte, c *circuit.Circuit) *BinaryFile {
	return &BinaryFile{
		Header{WGBINARY, BINFILE_MAJOR_VERSION, BINFILE_MINOR_VERSION, metadata},
		*NewDocument(c),
	}
}

// Header provides a structured header for the binary file format.  In
// particular, it supports versioning and embedded (binary) metadata.
type Header struct {
	Identifier   [8]byte
	MajorVersion uint16
	MinorVersion uint16
	MetaData     []byte
}

// SetMetaData encodes a set of key-value pairs as the metadata of this header.
func (p *Header) SetMetaData(metadata map[string]string) error {
	data, err := json.Marshal(metadata)
	//
	if err == nil {
		p.MetaData = data
	}
	//
	return err
}

// GetMetaData decodes the metadata of this header as a set of key-value pairs.
func (p *Header) GetMetaData() (map[string]string, error) {
	var metadata = make(map[string]string)
	//
	if len(p.MetaData) == 0 {
		return metadata, nil
	} else if err := json.Unmarshal(p.MetaData, &metadata); err != nil {
		return nil, err
	}
	//
	return metadata, nil
}

// MarshalBinary converts the BinaryFile Header into a sequence of bytes.  The
// header layout is fixed, whatever encoding is used for the body.
func (p *Header) MarshalBinary() ([]byte, error) {
	var (
		buffer     bytes.Buffer
		majorBytes [2]byte
		minorBytes [2]byte
		metaLength [4]byte
	)
	// Marshall version numbers
	binary.BigEndian.PutUint16(majorBytes[:], p.MajorVersion)
	binary.BigEndian.PutUint16(minorBytes[:], p.MinorVersion)
	binary.BigEndian.PutUint32(metaLength[:], uint32(len(p.MetaData)))
	// Write identifier
	buffer.Write(p.Identifier[:])
	// Write version numbers
	buffer.Write(majorBytes[:])
	buffer.Write(minorBytes[:])
	// Write metadata length, then metadata itself
	buffer.Write(metaLength[:])
	buffer.Write(p.MetaData)
	// Done
	return buffer.Bytes(), nil
}

// UnmarshalBinary initialises this BinaryFile Header from a given set of data
// bytes.  This should match exactly the encoding above.
func (p *Header) UnmarshalBinary(buffer *bytes.Buffer) error {
	var (
		majorBytes      [2]byte
		minorBytes      [2]byte
		metaLengthBytes [4]byte
	)
	//
	for _, field := range [][]byte{p.Identifier[:], majorBytes[:], minorBytes[:], metaLengthBytes[:]} {
		if err := readFull(buffer, field); err != nil {
			return err
		}
	}
	//
	var (
		metaLength = binary.BigEndian.Uint32(metaLengthBytes[:])
		metaBytes  = make([]byte, metaLength)
	)
	// Read metadata itself
	if err := readFull(buffer, metaBytes); err != nil {
		return err
	}
	// Finally assign everything over
	p.MajorVersion = binary.BigEndian.Uint16(majorBytes[:])
	p.MinorVersion = binary.BigEndian.Uint16(minorBytes[:])
	p.MetaData = metaBytes
	// Done
	return nil
}

func readFull(buffer *bytes.Buffer, data []byte) error {
	if len(data) == 0 {
		return nil
	} else if n, err := buffer.Read(data); err != nil || n != len(data) {
		return errors.New("malformed binary file")
	}
	//
	return nil
}

// IsCompatible determines whether a given binary file is compatible with this
// version of witgen.
func (p *Header) IsCompatible() bool {
	return p.Identifier == WGBINARY &&
		p.MajorVersion == BINFILE_MAJOR_VERSION &&
		p.MinorVersion <= BINFILE_MINOR_VERSION
}

// BINFILE_MAJOR_VERSION gives the major version of the binary file format.  No
// matter what version, we should always have the WGBINARY identifier first,
// followed by the header.  What follows after that, however, is determined by
// the major version.
const BINFILE_MAJOR_VERSION uint16 = 1

// BINFILE_MINOR_VERSION gives the minor version of the binary file format.  The
// expected interpretation is that older versions are compatible with newer
// ones, but not vice-versa.
const BINFILE_MINOR_VERSION uint16 = 0

// WGBINARY is used as the file identifier for binary file types.  This just
// helps us identify actual binary files from corrupted files.
var WGBINARY = [8]byte{'w', 'g', 'b', 'i', 'n', 'a', 'r', 'y'}

// IsBinaryFile checks whether the given data file begins with the expected
// "wgbinary" identifier.
func IsBinaryFile(data []byte) bool {
	return len(data) >= len(WGBINARY) && bytes.Equal(data[:len(WGBINARY)], WGBINARY[:])
}

// MarshalBinary converts the BinaryFile into a sequence of bytes.
func (p *BinaryFile) MarshalBinary() ([]byte, error) {
	var buffer bytes.Buffer
	// Marshal header
	headerBytes, err := p.Header.MarshalBinary()
	//
	if err != nil {
		return nil, err
	}
	//
	buffer.Write(headerBytes)
	// Encode document
	if err := newEncoder(&buffer).Encode(&p.Document); err != nil {
		return nil, err
	}
	// Done
	return buffer.Bytes(), nil
}

// UnmarshalBinary initialises this BinaryFile from a given set of data bytes.
// This should match exactly the encoding above.
func (p *BinaryFile) UnmarshalBinary(data []byte) error {
	buffer := bytes.NewBuffer(data)
	// Read header
	if err := p.Header.UnmarshalBinary(buffer); err != nil {
		return err
	} else if !p.Header.IsCompatible() {
		return fmt.Errorf("incompatible binary file was v%d.%d, but expected v%d.%d",
			p.Header.MajorVersion, p.Header.MinorVersion, BINFILE_MAJOR_VERSION, BINFILE_MINOR_VERSION)
	}
	//
	return newDecoder(buffer).Decode(&p.Document)
}

// The msgpack encoding reuses the json keys, so both formats agree on field
// names.
func newEncoder(buffer *bytes.Buffer) *msgpack.Encoder {
	enc := msgpack.NewEncoder(buffer)
	enc.SetCustomStructTag("json")
	//
	return enc
}

func newDecoder(buffer *bytes.Buffer) *msgpack.Decoder {
	dec := msgpack.NewDecoder(buffer)
	dec.SetCustomStructTag("json")
	//
	return dec
}

// ============================================================================
// Reading / Writing Circuits
// ============================================================================

// EncodeJson encodes a circuit as an indented JSON document.
func EncodeJson(c *circuit.Circuit) ([]byte, error) {
	return json.MarshalIndent(NewDocument(c), "", "  ")
}

// EncodeBinary encodes a circuit as a binary file with the given metadata.
func EncodeBinary(c *circuit.Circuit, metadata map[string]string) ([]byte, error) {
	binf := NewBinaryFile(nil, c)
	//
	if err := binf.Header.SetMetaData(metadata); err != nil {
		return nil, err
	}
	//
	return binf.MarshalBinary()
}

// ParseCircuit decodes a circuit from either a binary file or a JSON document,
// depending upon whether the data begins with the binary file identifier.
func ParseCircuit(data []byte) (*circuit.Circuit, error) {
	var doc Document
	//
	if IsBinaryFile(data) {
		var binf BinaryFile
		//
		if err := binf.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		//
		doc = binf.Document
	} else if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	//
	return doc.Circuit()
}

// ReadCircuitFile reads and decodes a circuit from a given file.
func ReadCircuitFile(filename string) (*circuit.Circuit, error) {
	data, err := os.ReadFile(filename)
	//
	if err != nil {
		return nil, err
	}
	//
	c, err := ParseCircuit(data)
	//
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	//
	return c, nil
}
