package directory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

// Loader produces a fresh, ordered account list.
type Loader interface {
	Load(ctx context.Context) ([]Account, error)
}

// FileLoader reads the account and mapping snapshots from disk.
type FileLoader struct {
	accountsPath string
	mappingPath  string
	hiddenNames  []string
}

var _ Loader = (*FileLoader)(nil)

func NewFileLoader(accountsPath, mappingPath string, hiddenNames []string) *FileLoader {
	return &FileLoader{
		accountsPath: accountsPath,
		mappingPath:  mappingPath,
		hiddenNames:  hiddenNames,
	}
}

func (l *FileLoader) Load(ctx context.Context) ([]Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Load(l.accountsPath, l.mappingPath, l.hiddenNames)
}

// Load joins the account snapshot against the puid mapping. Accounts
// without a mapping entry and accounts named in hiddenNames are dropped;
// the remaining accounts keep their snapshot order.
func Load(accountsPath, mappingPath string, hiddenNames []string) ([]Account, error) {
	accountsData, err := readSnapshot(accountsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: accounts: %w", ErrSourceUnavailable, err)
	}
	records, accountsVariant, err := decodeAccounts(accountsData)
	if err != nil {
		return nil, fmt.Errorf("%w: accounts: %w", ErrSourceUnavailable, err)
	}

	mappingData, err := readSnapshot(mappingPath)
	if err != nil {
		return nil, fmt.Errorf("%w: mapping: %w", ErrSourceUnavailable, err)
	}
	mapping, mappingVariant, err := decodeMapping(mappingData)
	if err != nil {
		return nil, fmt.Errorf("%w: mapping: %w", ErrSourceUnavailable, err)
	}

	accounts := join(records, mapping, hiddenNames)

	slog.Info("Account directory loaded",
		"accounts_format", accountsVariant,
		"mapping_format", mappingVariant,
		"records", len(records),
		"mapped", len(mapping),
		"accounts", len(accounts))

	return accounts, nil
}

func join(records []record, mapping map[string]string, hiddenNames []string) []Account {
	accounts := make([]Account, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	for _, r := range records {
		puid := mapping[r.InternalID]
		if puid == "" {
			continue
		}
		if lo.Contains(hiddenNames, r.Name) {
			continue
		}
		if _, dup := seen[puid]; dup {
			slog.Debug("Duplicate puid in account snapshot", "puid", puid, "name", r.Name)
			continue
		}
		seen[puid] = struct{}{}

		accounts = append(accounts, Account{
			PUID:       puid,
			InternalID: r.InternalID,
			Name:       r.Name,
			Signature:  r.Signature,
			AvatarURL:  r.AvatarURL,
		})
	}

	return accounts
}

// readSnapshot reads path. A .pkl path refers to the raw pickle written by
// the account client; the extraction step leaves a <stem>_extracted.json
// next to it, which is what gets read.
func readSnapshot(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("path not configured")
	}

	if strings.EqualFold(filepath.Ext(path), ".pkl") {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		extracted := filepath.Join(filepath.Dir(path), stem+"_extracted.json")
		data, err := os.ReadFile(extracted)
		if err != nil {
			return nil, fmt.Errorf("failed to read extracted snapshot for %s: %w", path, err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}
