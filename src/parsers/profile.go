// src/parsers/profile.go
package parsers

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/username/chainledger/src/logger"
)

// Profile is the parsed form of a ledger profile file: a line-oriented
// command language declaring which addresses are ours, what to hide, which
// token contracts count as commodities, and which symbols to ignore.
//
// Supported directives:
//
//	include <file>...            read another profile relative to this one
//	add <address> [label]        track an address as our own
//	label <address> <label>      label a counterparty
//	hide <address>...            hide addresses (their outgoing transfers drop)
//	ignoreSymbols <symbol>...    drop transfers in these symbols/contracts
//	allowContract <address> <symbol> [name]  allow-list a token contract
//	blockNumber <n>              sync cutoff block
//	etherscanApiKey <key>        API key override
//	# comment
type Profile struct {
	Tracked          []TrackedAccount
	Labels           map[string]string
	Hidden           []string
	IgnoredSymbols   []string
	AllowedContracts []AllowedContract
	EndBlock         string
	EtherscanAPIKey  string
}

type TrackedAccount struct {
	Address string
	Label   string
}

type AllowedContract struct {
	Address string
	Symbol  string
	Name    string
}

var commentRe = regexp.MustCompile(`#.*$`)

// ParseProfileFile reads a profile file, following include directives
// relative to the file's directory.
func ParseProfileFile(path string) (*Profile, error) {
	p := &Profile{Labels: make(map[string]string)}
	if err := p.readFile(path); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) readFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open profile %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(commentRe.ReplaceAllString(scanner.Text(), ""))
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		command, args := fields[0], fields[1:]

		switch command {
		case "include":
			for _, inc := range args {
				full := filepath.Join(filepath.Dir(path), inc)
				if err := p.readFile(full); err != nil {
					return err
				}
			}
		case "add":
			if len(args) == 0 {
				return fmt.Errorf("%s:%d: add requires an address", path, lineNo)
			}
			acc := TrackedAccount{Address: args[0]}
			if len(args) > 1 {
				acc.Label = strings.Join(args[1:], " ")
			}
			p.Tracked = append(p.Tracked, acc)
		case "label":
			if len(args) < 2 {
				return fmt.Errorf("%s:%d: label requires an address and a label", path, lineNo)
			}
			p.Labels[args[0]] = strings.Join(args[1:], " ")
		case "hide":
			p.Hidden = append(p.Hidden, args...)
		case "ignoreSymbols":
			p.IgnoredSymbols = append(p.IgnoredSymbols, args...)
		case "allowContract":
			if len(args) < 2 {
				return fmt.Errorf("%s:%d: allowContract requires an address and a symbol", path, lineNo)
			}
			contract := AllowedContract{Address: args[0], Symbol: args[1]}
			if len(args) > 2 {
				contract.Name = strings.Join(args[2:], " ")
			}
			p.AllowedContracts = append(p.AllowedContracts, contract)
		case "blockNumber":
			if len(args) > 0 {
				p.EndBlock = args[0]
			}
		case "etherscanApiKey":
			if len(args) > 0 {
				p.EtherscanAPIKey = args[0]
			}
		default:
			if logger.L != nil {
				logger.L.Warn("Unknown profile directive", "file", path, "line", lineNo, "command", command)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	return nil
}
