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

package serde

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
)

// bincodeMarshal walks the exported fields of v (a struct or pointer to
// struct) in declaration order and writes each one with a fixed, minimal
// encoding: a uint32 length prefix for variable-length values (string,
// []byte, slices), big-endian for everything else. It is named
// "bincode" for continuity with the format's original terminology; it is
// not wire-compatible with any other bincode implementation.
//
// encoding/gob is deliberately not used here: gob prefixes every payload
// with a self-describing type schema, which is redundant once the format
// tag already pins the codec and wastes bytes on every frame.
func bincodeMarshal(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("bincode: nil pointer")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("bincode: unsupported top-level kind %s", rv.Kind())
	}

	var buf bytes.Buffer
	if err := bincodeEncodeStruct(&buf, rv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func bincodeEncodeStruct(buf *bytes.Buffer, rv reflect.Value) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}
		if err := bincodeEncodeValue(buf, rv.Field(i)); err != nil {
			return fmt.Errorf("bincode: field %s: %w", field.Name, err)
		}
	}
	return nil
}

func bincodeEncodeValue(buf *bytes.Buffer, fv reflect.Value) error {
	switch fv.Kind() {
	case reflect.Bool:
		b := byte(0)
		if fv.Bool() {
			b = 1
		}
		buf.WriteByte(b)
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint,
		reflect.Float32, reflect.Float64:
		return binary.Write(buf, binary.BigEndian, fv.Interface())
	case reflect.String:
		s := fv.String()
		if err := binary.Write(buf, binary.BigEndian, uint32(len(s))); err != nil {
			return err
		}
		buf.WriteString(s)
	case reflect.Slice:
		if fv.Type().Elem().Kind() == reflect.Uint8 {
			b := fv.Bytes()
			if err := binary.Write(buf, binary.BigEndian, uint32(len(b))); err != nil {
				return err
			}
			buf.Write(b)
			return nil
		}
		if err := binary.Write(buf, binary.BigEndian, uint32(fv.Len())); err != nil {
			return err
		}
		for i := 0; i < fv.Len(); i++ {
			if err := bincodeEncodeValue(buf, fv.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		return bincodeEncodeStruct(buf, fv)
	case reflect.Ptr:
		present := byte(0)
		if !fv.IsNil() {
			present = 1
		}
		buf.WriteByte(present)
		if present == 1 {
			return bincodeEncodeValue(buf, fv.Elem())
		}
	default:
		return fmt.Errorf("unsupported kind %s", fv.Kind())
	}
	return nil
}

// bincodeUnmarshal is the inverse of bincodeMarshal: v must be a pointer
// to the same struct shape that produced data.
func bincodeUnmarshal(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("bincode: Decode target must be a non-nil pointer")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("bincode: unsupported top-level kind %s", rv.Kind())
	}

	r := bytes.NewReader(data)
	if err := bincodeDecodeStruct(r, rv); err != nil {
		return err
	}
	return nil
}

func bincodeDecodeStruct(r *bytes.Reader, rv reflect.Value) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		if err := bincodeDecodeValue(r, rv.Field(i)); err != nil {
			return fmt.Errorf("bincode: field %s: %w", field.Name, err)
		}
	}
	return nil
}

func bincodeDecodeValue(r *bytes.Reader, fv reflect.Value) error {
	switch fv.Kind() {
	case reflect.Bool:
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		fv.SetBool(b != 0)
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint,
		reflect.Float32, reflect.Float64:
		return binary.Read(r, binary.BigEndian, fv.Addr().Interface())
	case reflect.String:
		n, err := readUint32(r)
		if err != nil {
			return err
		}
		b := make([]byte, n)
		if _, err := readFull(r, b); err != nil {
			return err
		}
		fv.SetString(string(b))
	case reflect.Slice:
		n, err := readUint32(r)
		if err != nil {
			return err
		}
		if fv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, n)
			if _, err := readFull(r, b); err != nil {
				return err
			}
			fv.SetBytes(b)
			return nil
		}
		out := reflect.MakeSlice(fv.Type(), int(n), int(n))
		for i := 0; i < int(n); i++ {
			if err := bincodeDecodeValue(r, out.Index(i)); err != nil {
				return err
			}
		}
		fv.Set(out)
	case reflect.Struct:
		return bincodeDecodeStruct(r, fv)
	case reflect.Ptr:
		present, err := r.ReadByte()
		if err != nil {
			return err
		}
		if present == 0 {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		fv.Set(reflect.New(fv.Type().Elem()))
		return bincodeDecodeValue(r, fv.Elem())
	default:
		return fmt.Errorf("unsupported kind %s", fv.Kind())
	}
	return nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	n, err := r.Read(b)
	if err != nil && len(b) > 0 {
		return n, err
	}
	if n < len(b) {
		return n, fmt.Errorf("bincode: short read: wanted %d, got %d", len(b), n)
	}
	return n, nil
}
