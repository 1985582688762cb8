// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	meshconfig "github.com/querymesh/loomquery/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage loomquery credentials",
	Long:  `Store and inspect the LLM provider credentials loomquery reads from the system keyring when the matching environment variable is unset.`,
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key [key-name]",
	Short: "Save an API key to the system keyring",
	Long: `Save an API key to the system keyring securely.

The key is stored in your platform's secure credential store (Keychain on
macOS, Credential Manager on Windows, Secret Service on Linux). Run
'loomquery config list-keys' to see available key names.`,
	Args: cobra.ExactArgs(1),
	Run:  runConfigSetKey,
}

var configGetKeyCmd = &cobra.Command{
	Use:   "get-key [key-name]",
	Short: "Show a masked API key from the system keyring",
	Args:  cobra.ExactArgs(1),
	Run:   runConfigGetKey,
}

var configDeleteKeyCmd = &cobra.Command{
	Use:   "delete-key [key-name]",
	Short: "Remove an API key from the system keyring",
	Args:  cobra.ExactArgs(1),
	Run:   runConfigDeleteKey,
}

var configListKeysCmd = &cobra.Command{
	Use:   "list-keys",
	Short: "List the key names loomquery looks up in the keyring",
	Run:   runConfigListKeys,
}

func init() {
	configCmd.AddCommand(configSetKeyCmd, configGetKeyCmd, configDeleteKeyCmd, configListKeysCmd)
	rootCmd.AddCommand(configCmd)
}

func isKnownKey(keyName string) bool {
	for _, k := range meshconfig.KeyringSecretKeys {
		if k == keyName {
			return true
		}
	}
	return false
}

func runConfigSetKey(cmd *cobra.Command, args []string) {
	keyName := args[0]
	if !isKnownKey(keyName) {
		fmt.Fprintf(os.Stderr, "unknown key name: %s\n", keyName)
		runConfigListKeys(cmd, nil)
		os.Exit(1)
	}

	fmt.Printf("Enter %s (input hidden): ", keyName)
	secretBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
		os.Exit(1)
	}
	secret := string(secretBytes)
	if secret == "" {
		fmt.Fprintln(os.Stderr, "secret cannot be empty")
		os.Exit(1)
	}

	if err := meshconfig.SaveSecretToKeyring(keyName, secret); err != nil {
		fmt.Fprintf(os.Stderr, "error saving to keyring: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("saved %s to system keyring\n", keyName)
}

func runConfigGetKey(cmd *cobra.Command, args []string) {
	keyName := args[0]
	secret, err := meshconfig.GetSecretFromKeyring(keyName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "key not found in keyring: %v\n", err)
		fmt.Fprintf(os.Stderr, "set it with: loomquery config set-key %s\n", keyName)
		os.Exit(1)
	}
	fmt.Printf("%s: %s\n", keyName, maskSecret(secret))
}

func runConfigDeleteKey(cmd *cobra.Command, args []string) {
	keyName := args[0]
	if err := meshconfig.DeleteSecretFromKeyring(keyName); err != nil {
		fmt.Fprintf(os.Stderr, "error deleting key: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("deleted %s from system keyring\n", keyName)
}

func runConfigListKeys(cmd *cobra.Command, args []string) {
	fmt.Println("Available secret keys:")
	for _, k := range meshconfig.KeyringSecretKeys {
		fmt.Printf("  - %s\n", k)
	}
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
