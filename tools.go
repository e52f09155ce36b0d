//go:build tools

package main

// Pins code generators used by the protogen build.
import (
	_ "google.golang.org/protobuf/cmd/protoc-gen-go"
)
