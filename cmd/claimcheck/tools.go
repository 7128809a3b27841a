// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/claimcheck/lib/capture"
	"github.com/bureau-foundation/claimcheck/lib/claimstore"
	"github.com/bureau-foundation/claimcheck/lib/codec"
	"github.com/bureau-foundation/claimcheck/lib/stream"
)

func runRedeem(args []string, std streams) error {
	var (
		common         storeFlags
		tokenPath      string
		descriptorPath string
	)

	flags := pflag.NewFlagSet("redeem", pflag.ContinueOnError)
	common.add(flags)
	flags.StringVar(&tokenPath, "token", "", "redeem the CBOR claim token in this file")
	flags.StringVar(&descriptorPath, "descriptor", "", "redeem the JSON capture descriptor in this file (comments allowed)")
	flags.Usage = func() {
		fmt.Fprintf(std.stderr, "Usage: claimcheck redeem [flags] [<location>]\n\nFlags:\n")
		flags.PrintDefaults()
	}

	if stop, err := parseFlags(flags, args, std.stderr); stop || err != nil {
		return err
	}

	sources := flags.NArg()
	if tokenPath != "" {
		sources++
	}
	if descriptorPath != "" {
		sources++
	}
	if sources != 1 {
		flags.Usage()
		return fmt.Errorf("redeem requires exactly one of <location>, --token or --descriptor")
	}

	_, store, _, err := common.open(std.stderr)
	if err != nil {
		return err
	}

	var payload io.ReadCloser
	switch {
	case tokenPath != "":
		data, err := os.ReadFile(tokenPath)
		if err != nil {
			return err
		}
		token, err := claimstore.UnmarshalToken(data)
		if err != nil {
			return err
		}
		payload, err = store.RedeemToken(token)
		if err != nil {
			return err
		}
	case descriptorPath != "":
		data, err := os.ReadFile(descriptorPath)
		if err != nil {
			return err
		}
		var descriptor capture.Descriptor
		if err := json.Unmarshal(jsonc.ToJSON(data), &descriptor); err != nil {
			return fmt.Errorf("parsing descriptor %s: %w", descriptorPath, err)
		}
		payload, err = capture.Redeem(store, descriptor)
		if err != nil {
			return err
		}
	default:
		payload, err = store.Redeem(flags.Arg(0))
		if err != nil {
			return err
		}
	}

	_, err = io.Copy(std.stdout, payload)
	return errors.Join(err, payload.Close())
}

func runToken(args []string, std streams) error {
	var (
		common      storeFlags
		transferred bool
		diagnose    bool
		outputPath  string
	)

	flags := pflag.NewFlagSet("token", pflag.ContinueOnError)
	common.add(flags)
	flags.BoolVar(&transferred, "transferred", false, "issue the token as already transferred to the shared directory")
	flags.BoolVar(&diagnose, "diagnose", false, "print CBOR diagnostic notation instead of raw bytes")
	flags.StringVarP(&outputPath, "output", "o", "-", "write the token here (- for stdout)")
	flags.Usage = func() {
		fmt.Fprintf(std.stderr, "Usage: claimcheck token [flags] <location>\n\nFlags:\n")
		flags.PrintDefaults()
	}

	if stop, err := parseFlags(flags, args, std.stderr); stop || err != nil {
		return err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return fmt.Errorf("token requires exactly one location")
	}

	location, err := claimstore.ParseLocation(flags.Arg(0))
	if err != nil {
		return err
	}
	_, store, _, err := common.open(std.stderr)
	if err != nil {
		return err
	}

	token := store.TokenFor(location)
	if transferred {
		token = token.Transferred()
	}
	data, err := claimstore.MarshalToken(token)
	if err != nil {
		return err
	}
	if diagnose {
		notation, err := codec.Diagnose(data)
		if err != nil {
			return err
		}
		data = []byte(notation + "\n")
	}

	if outputPath == "-" {
		_, err = std.stdout.Write(data)
		return err
	}
	return os.WriteFile(outputPath, data, 0644)
}

func runAggregate(args []string, std streams) error {
	flags := pflag.NewFlagSet("aggregate", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(std.stderr, "Usage: claimcheck aggregate <file>...\n\nWraps each file as a part of one aggregate envelope on stdout.\n")
	}
	if stop, err := parseFlags(flags, args, std.stderr); stop || err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return fmt.Errorf("aggregate requires at least one file")
	}

	parts := make([]io.ReadCloser, 0, flags.NArg())
	for _, path := range flags.Args() {
		part, err := openInput(path, std.stdin)
		if err != nil {
			for _, opened := range parts {
				opened.Close()
			}
			return err
		}
		parts = append(parts, part)
	}

	aggregate := stream.NewAggregator(parts...)
	_, err := io.Copy(std.stdout, aggregate)
	return errors.Join(err, aggregate.Close())
}
