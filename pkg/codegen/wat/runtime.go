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
package wat

import (
	"github.com/consensys/go-witgen/pkg/codegen"
	"github.com/consensys/go-witgen/pkg/layout"
)

// runtime emits the entry points through which the host drives witness
// generation: initialisation, setting inputs via shared memory and reading
// back the witness.
func runtime(ctx *codegen.Context, code *codegen.Code) {
	reserveStackFr(code)
	buildBufferMessage(ctx, code)
	getMessageChar(ctx, code)
	versions(ctx, code)
	sharedMemory(ctx, code)
	inputs(ctx, code)
	setInputSignal(ctx, code)
	getWitness(ctx, code)
	initialise(ctx, code)
}

// reserveStackFr reserves a number of bytes at the top of the stack, growing
// memory as necessary, and returns the previous top.
func reserveStackFr(code *codegen.Code) {
	code.Open("(func $reserveStackFr (type $_t_i32ri32)")
	code.Add("(param $nbytes i32)")
	code.Add("(result i32)")
	code.Add("(local $inistack i32) (local $newbsize i32) (local $memorybsize i32)")
	code.Add("i32.const 0")
	code.Add("i32.load")
	code.Add("local.set $inistack")
	code.Add("local.get $inistack")
	code.Add("local.get $nbytes")
	code.Add("i32.add")
	code.Add("local.set $newbsize")
	code.Add("i32.const 0")
	code.Add("local.get $newbsize")
	code.Add("i32.store")
	code.Add("memory.size")
	code.Addf("i32.const %d", WASM_PAGE_SIZE)
	code.Add("i32.mul")
	code.Add("local.set $memorybsize")
	code.Add("local.get $newbsize")
	code.Add("local.get $memorybsize")
	code.Add("i32.gt_u")
	code.Open("if")
	code.Add("local.get $newbsize")
	code.Add("local.get $memorybsize")
	code.Add("i32.sub")
	code.Addf("i32.const %d", WASM_PAGE_SIZE-1)
	code.Add("i32.add")
	code.Add("i32.const 16")
	code.Add("i32.shr_u")
	code.Add("memory.grow")
	code.Add("i32.const -1")
	code.Add("i32.eq")
	code.Open("if")
	code.Addf("i32.const %d", codegen.OUT_OF_MEMORY)
	code.Add("call $exceptionHandler")
	code.Close("end")
	code.Close("end")
	code.Add("local.get $inistack")
	code.Close(")")
}

// buildBufferMessage copies a message from the message list into the message
// buffer, ready to be read by the host.
func buildBufferMessage(ctx *codegen.Context, code *codegen.Code) {
	var (
		l      = ctx.Layout
		counts = l.Counts()
		limit  = l.MessageBufferStart() + min(counts.MessageBytes, counts.MessageBufferBytes-1)
	)
	//
	code.Open("(func $buildBufferMessage (type $_t_i32i32)")
	code.Add("(param $m i32) (param $l i32)")
	code.Add("(local $em i32) (local $bm i32) (local $mc i32)")
	code.Addf("i32.const %d", l.MessageBufferStart())
	code.Add("local.set $bm")
	code.Add("local.get $m")
	code.Addf("i32.const %d", counts.Messages)
	code.Add("i32.lt_u")
	code.Open("if")
	code.Add("local.get $m")
	code.Addf("i32.const %d", counts.MessageBytes)
	code.Add("i32.mul")
	code.Addf("i32.const %d", l.MessageListStart())
	code.Add("i32.add")
	code.Add("local.set $em")
	code.Open("block")
	code.Open("loop")
	code.Add("local.get $bm")
	code.Addf("i32.const %d", limit)
	code.Add("i32.eq")
	code.Add("br_if 1")
	code.Add("local.get $em")
	code.Add("i32.load8_u")
	code.Add("local.tee $mc")
	code.Add("i32.eqz")
	code.Add("br_if 1")
	code.Add("local.get $bm")
	code.Add("local.get $mc")
	code.Add("i32.store8")
	code.Add("local.get $em")
	code.Add("i32.const 1")
	code.Add("i32.add")
	code.Add("local.set $em")
	code.Add("local.get $bm")
	code.Add("i32.const 1")
	code.Add("i32.add")
	code.Add("local.set $bm")
	code.Add("br 0")
	code.Close("end")
	code.Close("end")
	code.Close("end")
	code.Add("local.get $bm")
	code.Add("i32.const 0")
	code.Add("i32.store8")
	code.Addf("i32.const %d", l.MessageBufferCounter())
	code.Add("i32.const 0")
	code.Add("i32.store")
	code.Close(")")
}

// getMessageChar returns the next character of the message buffer (or zero
// at its end).
func getMessageChar(ctx *codegen.Context, code *codegen.Code) {
	var l = ctx.Layout
	//
	code.Open("(func $getMessageChar (export \"getMessageChar\") (type $_t_ri32)")
	code.Add("(result i32)")
	code.Add("(local $c i32)")
	code.Addf("i32.const %d", l.MessageBufferCounter())
	code.Add("i32.load")
	code.Add("local.tee $c")
	code.Addf("i32.const %d", l.Counts().MessageBufferBytes)
	code.Add("i32.ge_u")
	code.Open("if")
	code.Add("i32.const 0")
	code.Add("return")
	code.Close("end")
	code.Addf("i32.const %d", l.MessageBufferStart())
	code.Add("local.get $c")
	code.Add("i32.add")
	code.Add("i32.load8_u")
	code.Addf("i32.const %d", l.MessageBufferCounter())
	code.Add("local.get $c")
	code.Add("i32.const 1")
	code.Add("i32.add")
	code.Add("i32.store")
	code.Close(")")
}

// constant emits an exported function returning a constant.
func constant(code *codegen.Code, name string, value uint) {
	code.Addf("(func $%s (export \"%s\") (type $_t_ri32) (result i32) i32.const %d)", name, name, value)
}

func versions(ctx *codegen.Context, code *codegen.Code) {
	var v = ctx.Circuit.Version
	//
	constant(code, "getVersion", v.Major)
	constant(code, "getMinorVersion", v.Minor)
	constant(code, "getPatchVersion", v.Patch)
}

// sharedMemory emits the accessors for the shared read/write area, which holds
// one field element in long normal form.  Its 32-bit words follow the two
// header words.
func sharedMemory(ctx *codegen.Context, code *codegen.Code) {
	var (
		l     = ctx.Layout
		words = l.SharedRWStart() + 8
	)
	//
	constant(code, "getSharedRWMemoryStart", words)
	constant(code, "getFieldNumLen32", l.Size32())
	//
	code.Open("(func $readSharedRWMemory (export \"readSharedRWMemory\") (type $_t_i32ri32)")
	code.Add("(param $p i32)")
	code.Add("(result i32)")
	code.Add("local.get $p")
	code.Add("i32.const 4")
	code.Add("i32.mul")
	code.Addf("i32.load offset=%d", words)
	code.Close(")")
	//
	code.Open("(func $writeSharedRWMemory (export \"writeSharedRWMemory\") (type $_t_i32i32)")
	code.Add("(param $p i32) (param $v i32)")
	code.Add("local.get $p")
	code.Add("i32.const 4")
	code.Add("i32.mul")
	code.Add("local.get $v")
	code.Addf("i32.store offset=%d", words)
	code.Close(")")
	//
	code.Open("(func $getRawPrime (export \"getRawPrime\") (type $_t_void)")
	//
	for i := range l.Size32() {
		code.Addf("i32.const %d", words+4*i)
		code.Addf("i32.const %d", l.RawPrimeStart()+8+4*i)
		code.Add("i32.load")
		code.Add("i32.store")
	}
	//
	code.Close(")")
}

// inputs emits the routines for locating inputs by the hash of their name.
func inputs(ctx *codegen.Context, code *codegen.Code) {
	var (
		l    = ctx.Layout
		c    = ctx.Circuit
		mask = l.HashMapCapacity() - 1
	)
	//
	constant(code, "getInputSize", c.NumberOfMainInputs)
	constant(code, "getWitnessSize", uint(len(c.Witness)))
	// Probe linearly (with wrap around) from the slot given by the hash, until
	// either the entry or an empty slot is found.
	code.Open("(func $getInputSignalMapPosition (type $_t_i32i32ri32)")
	code.Add("(param $hmsb i32) (param $hlsb i32)")
	code.Add("(result i32)")
	code.Add("(local $hn i64) (local $ini i32) (local $pos i32) (local $h i64)")
	code.Add("local.get $hmsb")
	code.Add("i64.extend_i32_u")
	code.Add("i64.const 32")
	code.Add("i64.shl")
	code.Add("local.get $hlsb")
	code.Add("i64.extend_i32_u")
	code.Add("i64.or")
	code.Add("local.set $hn")
	code.Add("local.get $hlsb")
	code.Addf("i32.const %d", mask)
	code.Add("i32.and")
	code.Add("local.tee $ini")
	code.Add("local.set $pos")
	code.Open("block")
	code.Open("loop")
	code.Add("local.get $pos")
	code.Addf("i32.const %d", layout.HASHMAP_ENTRY_BYTES)
	code.Add("i32.mul")
	code.Addf("i64.load offset=%d", l.InputHashMapStart())
	code.Add("local.tee $h")
	code.Add("local.get $hn")
	code.Add("i64.eq")
	code.Open("if")
	code.Add("local.get $pos")
	code.Addf("i32.const %d", layout.HASHMAP_ENTRY_BYTES)
	code.Add("i32.mul")
	code.Addf("i32.const %d", l.InputHashMapStart())
	code.Add("i32.add")
	code.Add("return")
	code.Close("end")
	code.Add("local.get $h")
	code.Add("i64.eqz")
	code.Add("br_if 1")
	code.Add("local.get $pos")
	code.Add("i32.const 1")
	code.Add("i32.add")
	code.Addf("i32.const %d", mask)
	code.Add("i32.and")
	code.Add("local.tee $pos")
	code.Add("local.get $ini")
	code.Add("i32.eq")
	code.Add("br_if 1")
	code.Add("br 0")
	code.Close("end")
	code.Close("end")
	code.Add("i32.const 0")
	code.Close(")")
	//
	code.Open("(func $getInputSignalSize (export \"getInputSignalSize\") (type $_t_i32i32ri32)")
	code.Add("(param $hmsb i32) (param $hlsb i32)")
	code.Add("(result i32)")
	code.Add("(local $mp i32)")
	code.Add("local.get $hmsb")
	code.Add("local.get $hlsb")
	code.Add("call $getInputSignalMapPosition")
	code.Add("local.tee $mp")
	code.Add("i32.eqz")
	code.Open("if")
	code.Add("i32.const -1")
	code.Add("return")
	code.Close("end")
	code.Add("local.get $mp")
	code.Add("i32.load offset=12")
	code.Close(")")
}

// setInputSignal sets one element of an input (identified by the hash of its
// name) from the shared memory area.  Once every input has been set, the main
// component is run.
func setInputSignal(ctx *codegen.Context, code *codegen.Code) {
	var (
		l      = ctx.Layout
		c      = ctx.Circuit
		eb     = l.ElementBytes()
		first  = c.MainSignalOffset + c.NumberOfMainOutputs
		shared = l.SharedRWStart() + 8
	)
	//
	code.Open("(func $setInputSignal (export \"setInputSignal\") (type $_t_i32i32i32)")
	code.Add("(param $hmsb i32) (param $hlsb i32) (param $pos i32)")
	code.Add("(local $ns i32) (local $mp i32) (local $sip i32) (local $sipm i32) (local $merror i32)")
	code.Addf("i32.const %d", l.RemainingInputCounter())
	code.Add("i32.load")
	code.Add("local.tee $ns")
	code.Add("i32.eqz")
	raise(code, codegen.NO_REMAINING_INPUTS)
	code.Add("local.get $hmsb")
	code.Add("local.get $hlsb")
	code.Add("call $getInputSignalMapPosition")
	code.Add("local.tee $mp")
	code.Add("i32.eqz")
	raise(code, codegen.SIGNAL_NOT_FOUND)
	code.Add("local.get $pos")
	code.Add("local.get $mp")
	code.Add("i32.load offset=12")
	code.Add("i32.ge_u")
	raise(code, codegen.INPUT_INDEX_EXCEEDS_SIZE)
	// signal being set
	code.Add("local.get $mp")
	code.Add("i32.load offset=8")
	code.Add("local.get $pos")
	code.Add("i32.add")
	code.Add("local.set $sip")
	// one word per input signal
	code.Add("local.get $sip")
	code.Addf("i32.const %d", first)
	code.Add("i32.sub")
	code.Add("i32.const 4")
	code.Add("i32.mul")
	code.Addf("i32.const %d", l.InputSetMapStart())
	code.Add("i32.add")
	code.Add("local.tee $sipm")
	code.Add("i32.load")
	raise(code, codegen.INPUT_ALREADY_SET)
	code.Add("local.get $sipm")
	code.Add("i32.const 1")
	code.Add("i32.store")
	// copy value in long normal form
	code.Add("local.get $sip")
	code.Addf("i32.const %d", eb)
	code.Add("i32.mul")
	code.Addf("i32.const %d", l.SignalMemoryStart())
	code.Add("i32.add")
	code.Add("local.tee $sipm")
	code.Add("i32.const 0")
	code.Add("i32.store")
	code.Add("local.get $sipm")
	code.Addf("i32.const %d", layout.LONG_NORMAL)
	code.Add("i32.store offset=4")
	//
	for i := range l.Size32() {
		code.Add("local.get $sipm")
		code.Addf("i32.const %d", shared+4*i)
		code.Add("i32.load")
		code.Addf("i32.store offset=%d", 8+4*i)
	}
	//
	code.Addf("i32.const %d", l.RemainingInputCounter())
	code.Add("local.get $ns")
	code.Add("i32.const 1")
	code.Add("i32.sub")
	code.Add("local.tee $ns")
	code.Add("i32.store")
	code.Add("local.get $ns")
	code.Add("i32.eqz")
	code.Open("if")
	runMain(ctx, code)
	code.Close("end")
	code.Close(")")
}

// raise reports an exception to the host when the condition on the stack
// holds, and then returns.
func raise(code *codegen.Code, exception codegen.ExceptionCode) {
	code.Open("if")
	code.Addf("i32.const %d", exception)
	code.Add("call $exceptionHandler")
	code.Add("return")
	code.Close("end")
}

// runMain runs the main component, reporting any failure to the host.
func runMain(ctx *codegen.Context, code *codegen.Code) {
	code.Addf("i32.const %d", ctx.Layout.ComponentTreeStart())
	code.Addf("call $%s_run", ctx.Circuit.MainHeader)
	code.Add("local.tee $merror")
	code.Open("if")
	code.Add("local.get $merror")
	code.Add("call $exceptionHandler")
	code.Close("end")
}

// getWitness copies a witness element, in long normal form, into the shared
// memory area.
func getWitness(ctx *codegen.Context, code *codegen.Code) {
	var l = ctx.Layout
	//
	code.Open("(func $getWitness (export \"getWitness\") (type $_t_i32)")
	code.Add("(param $p i32)")
	code.Addf("i32.const %d", l.SharedRWStart())
	code.Add("local.get $p")
	code.Add("i32.const 4")
	code.Add("i32.mul")
	code.Addf("i32.load offset=%d", l.WitnessListStart())
	code.Addf("i32.const %d", l.ElementBytes())
	code.Add("i32.mul")
	code.Addf("i32.const %d", l.SignalMemoryStart())
	code.Add("i32.add")
	code.Add("call $Fr_copy")
	code.Addf("i32.const %d", l.SharedRWStart())
	code.Add("call $Fr_toLongNormal")
	code.Close(")")
}

// initialise resets the component tree and input bookkeeping, and creates the
// main component.  A main component without inputs is run immediately.
func initialise(ctx *codegen.Context, code *codegen.Code) {
	var (
		l = ctx.Layout
		c = ctx.Circuit
	)
	//
	code.Open("(func $init (export \"init\") (type $_t_i32)")
	code.Add("(param $sanityCheck i32)")
	code.Add("(local $i i32) (local $merror i32)")
	code.Addf("i32.const %d", l.ComponentFreePos())
	code.Addf("i32.const %d", l.ComponentTreeStart())
	code.Add("i32.store")
	code.Addf("i32.const %d", l.RemainingInputCounter())
	code.Addf("i32.const %d", c.NumberOfMainInputs)
	code.Add("i32.store")
	code.Add("i32.const 0")
	code.Add("local.set $i")
	code.Open("block")
	code.Open("loop")
	code.Add("local.get $i")
	code.Addf("i32.const %d", c.NumberOfMainInputs)
	code.Add("i32.eq")
	code.Add("br_if 1")
	code.Add("local.get $i")
	code.Add("i32.const 4")
	code.Add("i32.mul")
	code.Add("i32.const 0")
	code.Addf("i32.store offset=%d", l.InputSetMapStart())
	code.Add("local.get $i")
	code.Add("i32.const 1")
	code.Add("i32.add")
	code.Add("local.set $i")
	code.Add("br 0")
	code.Close("end")
	code.Close("end")
	code.Addf("i32.const %d", l.SignalAddress(c.MainSignalOffset))
	code.Addf("call $%s_create", c.MainHeader)
	code.Add("drop")
	//
	if c.NumberOfMainInputs == 0 {
		runMain(ctx, code)
	}
	//
	code.Close(")")
}
