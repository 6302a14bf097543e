package internal

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sensiblebit/revcheck"
)

// LoadPasswordsFromFile loads passwords from a file, one password per line
func LoadPasswordsFromFile(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var passwords []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			passwords = append(passwords, pwd)
		}
	}
	return passwords, scanner.Err()
}

// ProcessPasswords merges the default container passwords with a
// comma-separated list and an optional password file.
func ProcessPasswords(passwordList string, passwordFile string) ([]string, error) {
	var extra []string
	if passwordList != "" {
		for _, pwd := range strings.Split(passwordList, ",") {
			if pwd = strings.TrimSpace(pwd); pwd != "" {
				extra = append(extra, pwd)
			}
		}
	}

	if passwordFile != "" {
		filePasswords, err := LoadPasswordsFromFile(passwordFile)
		if err != nil {
			return nil, fmt.Errorf("loading passwords from file: %w", err)
		}
		extra = append(extra, filePasswords...)
	}

	return revcheck.DeduplicatePasswords(extra), nil
}
