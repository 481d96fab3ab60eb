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
package ir

// OperatorKind identifies the operator applied by a compute instruction.
type OperatorKind uint8

// Field operators
const (
	Mul OperatorKind = iota
	Div
	Add
	Sub
	Pow
	IntDiv
	Mod
	ShiftL
	ShiftR
	LesserEq
	GreaterEq
	Lesser
	Greater
	Eq
	NotEq
	BoolOr
	BoolAnd
	BitOr
	BitAnd
	BitXor
	PrefixSub
	BoolNot
	Complement
	// Address operators (i.e. over 32-bit integers)
	ToAddress
	MulAddress
	AddAddress
)

var operatorNames = []string{
	"MUL", "DIV", "ADD", "SUB", "POW", "INT_DIV", "MOD", "SHIFT_L", "SHIFT_R", "LESSER_EQ", "GREATER_EQ", "LESSER",
	"GREATER", "EQ", "NOT_EQ", "BOOL_OR", "BOOL_AND", "BIT_OR", "BIT_AND", "BIT_XOR", "PREFIX_SUB", "BOOL_NOT",
	"COMPLEMENT", "TO_ADDRESS", "MUL_ADDRESS", "ADD_ADDRESS",
}

func (k OperatorKind) String() string {
	if int(k) < len(operatorNames) {
		return operatorNames[k]
	}
	//
	return "???"
}

// IsAddress determines whether this operator works over addresses, rather
// than field elements.
func (k OperatorKind) IsAddress() bool {
	return k == ToAddress || k == MulAddress || k == AddAddress
}

// IsUnary determines whether this operator has exactly one operand.
func (k OperatorKind) IsUnary() bool {
	return k == PrefixSub || k == BoolNot || k == Complement || k == ToAddress
}

// Operator is an operator together with its size, which is only relevant for
// equality.  An equality whose size is anything other than a single element
// compares two vectors elementwise.
type Operator struct {
	Kind OperatorKind
	// Number of elements compared (equality only).
	EqSize Size
}

// Op constructs a (non-equality) operator.
func Op(kind OperatorKind) Operator {
	return Operator{kind, Single(1)}
}

// EqOp constructs an equality operator over a given number of elements.
func EqOp(size Size) Operator {
	return Operator{Eq, size}
}

// IsVectorEq determines whether this is an equality over anything other than
// exactly one element.  Comparing two empty vectors yields true.
func (o Operator) IsVectorEq() bool {
	return o.Kind == Eq && !o.EqSize.IsScalar()
}

func (o Operator) String() string {
	if o.Kind == Eq {
		return "EQ(" + o.EqSize.String() + ")"
	}
	//
	return o.Kind.String()
}
