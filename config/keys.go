// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
package config

import "strings"

// charset is the 62-character alphanumeric alphabet the obfuscation codec
// operates over. shuffledCharset is the one-time pad: it must be generated
// once per project and then kept forever, since changing it invalidates every
// previously obfuscated key.
const (
	charset         = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	shuffledCharset = "WSRQLbOkn7iJCyoPMgYw04VhBaj8dcl2xez5E3mrqHpftuNGFADK9sUTv6ZX1I"
)

// Obfuscate applies a reversible substitution to key.
//
// This is not intended to be secure against an attacker that knows the
// protocol. It only ensures that anyone who stumbles across the obfuscated
// string can't immediately recognize it as a private key.
func Obfuscate(key string) string {
	return strings.Map(substituteFunc(charset, shuffledCharset), key)
}

// Deobfuscate reverses Obfuscate.
func Deobfuscate(key string) string {
	return strings.Map(substituteFunc(shuffledCharset, charset), key)
}

func substituteFunc(from, to string) func(rune) rune {
	return func(r rune) rune {
		idx := strings.IndexRune(from, r)
		if idx < 0 {
			return r
		}
		return rune(to[idx])
	}
}
