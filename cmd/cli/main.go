package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	timeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "banking-cli",
		Short: "Banking CLI tool",
		Long:  `A command line interface for interacting with the banking API.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the banking API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	// Account commands
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	var accountName, accountEmail, accountBalance string
	createAccountCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Run: func(cmd *cobra.Command, args []string) {
			createAccount(accountName, accountEmail, accountBalance)
		},
	}
	createAccountCmd.Flags().StringVar(&accountName, "name", "", "Account holder name")
	createAccountCmd.Flags().StringVar(&accountEmail, "email", "", "Account holder email")
	createAccountCmd.Flags().StringVar(&accountBalance, "balance", "0", "Opening balance")
	createAccountCmd.MarkFlagRequired("name")
	createAccountCmd.MarkFlagRequired("email")

	getAccountCmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Get an account by ID",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			getJSON("/api/v1/accounts/" + args[0])
		},
	}

	listAccountsCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Run: func(cmd *cobra.Command, args []string) {
			getJSON("/api/v1/accounts")
		},
	}

	accountCmd.AddCommand(createAccountCmd, getAccountCmd, listAccountsCmd)
	rootCmd.AddCommand(accountCmd)

	// Transfer commands
	transferCmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer operations",
	}

	var sender, recipient, amount, idempotencyKey string
	createTransferCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a transfer",
		Run: func(cmd *cobra.Command, args []string) {
			createTransfer(sender, recipient, amount, idempotencyKey)
		},
	}
	createTransferCmd.Flags().StringVar(&sender, "from", "", "Sender account ID")
	createTransferCmd.Flags().StringVar(&recipient, "to", "", "Recipient account ID")
	createTransferCmd.Flags().StringVar(&amount, "amount", "", "Amount to transfer")
	createTransferCmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key (makes retries safe)")
	createTransferCmd.MarkFlagRequired("from")
	createTransferCmd.MarkFlagRequired("to")
	createTransferCmd.MarkFlagRequired("amount")

	getTransferCmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Get a transfer by ID",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			getJSON("/api/v1/transfers/" + args[0])
		},
	}

	listTransfersCmd := &cobra.Command{
		Use:   "list",
		Short: "List transfers, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			getJSON("/api/v1/transfers")
		},
	}

	transferCmd.AddCommand(createTransferCmd, getTransferCmd, listTransfersCmd)
	rootCmd.AddCommand(transferCmd)

	// Ledger commands
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	consistencyCmd := &cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency",
		Run: func(cmd *cobra.Command, args []string) {
			checkConsistency()
		},
	}

	ledgerCmd.AddCommand(consistencyCmd)
	rootCmd.AddCommand(ledgerCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func createAccount(name, email, balance string) {
	payload := map[string]any{
		"name":            name,
		"email":           email,
		"initial_balance": balance,
	}
	postJSON("/api/v1/accounts", payload, nil)
}

func createTransfer(sender, recipient, amount, idempotencyKey string) {
	payload := map[string]any{
		"sender_id":    sender,
		"recipient_id": recipient,
		"amount":       amount,
	}

	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	postJSON("/api/v1/transfers", payload, headers)
}

func postJSON(path string, payload map[string]any, headers map[string]string) {
	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("Failed to encode request: %v\n", err)
		os.Exit(1)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Failed to build request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	printResponse(resp)
}

func getJSON(path string) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + path)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	printResponse(resp)
}

func printResponse(resp *http.Response) {
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		fmt.Printf("Request failed (Status: %d)\nResponse: %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}

func checkConsistency() {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + "/api/v1/ledger/consistency")
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Consistency check FAILED (Status: %d)\nResponse: %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Printf("Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Consistency check PASSED\n")
	if consistent, ok := result["consistent"].(bool); ok {
		fmt.Printf("Consistent: %v\n", consistent)
	}
	fmt.Printf("Status: %s\n", result["status"])
}
