package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"argus/storage"
)

// renderUsersTable displays accounts in a formatted table
func renderUsersTable(users []*storage.User) {
	if len(users) == 0 {
		warningColor.Println("No accounts found")
		return
	}

	headerColor.Println("ACCOUNTS")
	headerColor.Println(strings.Repeat("=", 90))
	fmt.Printf("%-10s %-30s %-22s %-9s %-15s\n",
		"ID", "Email", "Name", "Role", "Created")
	fmt.Println(strings.Repeat("-", 90))

	for _, user := range users {
		shortID := user.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}

		name := user.Name
		if len(name) > 21 {
			name = name[:18] + "..."
		}

		fmt.Printf("%-10s %-30s %-22s %-9s %-15s\n",
			shortID, user.Email, name, user.Role, formatTime(user.CreatedAt))
	}

	fmt.Println(strings.Repeat("=", 90))
}

// outputAsJSON marshals a value to indented JSON on stdout
func outputAsJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
