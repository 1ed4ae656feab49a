package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Snapshot shapes produced by the extraction tooling over time. Each one
// is normalized into records or a mapping before the join sees it.
type variant string

const (
	variantItchatStorage variant = "itchat-storage"
	variantMPList        variant = "mp-list"
	variantAccountArray  variant = "account-array"
	variantExportV2      variant = "export-v2"

	variantTwoWayDict variant = "two-way-dict"
	variantPUIDMap    variant = "puid-map"
	variantFlat       variant = "flat"
)

// record is the canonical shape of one account before the puid join.
type record struct {
	InternalID string
	Name       string
	Signature  string
	AvatarURL  string
}

// flexString accepts JSON strings and numbers. Older snapshots stored
// some ids as numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// legacyAccount is an itchat MassivePlatform entry.
type legacyAccount struct {
	UserName   flexString `json:"UserName"`
	NickName   string     `json:"NickName"`
	Signature  string     `json:"Signature"`
	HeadImgUrl string     `json:"HeadImgUrl"`
}

type exportAccount struct {
	InternalID flexString `json:"internal_id"`
	Name       string     `json:"name"`
	Bio        string     `json:"bio"`
	AvatarURL  string     `json:"avatar_url"`
}

type accountsEnvelope struct {
	Version  int             `json:"version"`
	Accounts json.RawMessage `json:"accounts"`
	MPList   json.RawMessage `json:"mpList"`
	Storage  json.RawMessage `json:"storage"`
}

func decodeAccounts(data []byte) ([]record, variant, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty account snapshot")
	}

	if data[0] == '[' {
		records, err := decodeLegacyList(data)
		return records, variantAccountArray, err
	}
	if data[0] != '{' {
		return nil, "", fmt.Errorf("unsupported account snapshot: not a JSON object or array")
	}

	var env accountsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", fmt.Errorf("failed to parse account snapshot: %w", err)
	}

	switch {
	case env.Accounts != nil:
		if env.Version != 2 {
			return nil, "", fmt.Errorf("unsupported account export version %d", env.Version)
		}
		var accounts []exportAccount
		if err := json.Unmarshal(env.Accounts, &accounts); err != nil {
			return nil, "", fmt.Errorf("failed to parse accounts: %w", err)
		}
		records := make([]record, 0, len(accounts))
		for _, a := range accounts {
			records = append(records, record{
				InternalID: string(a.InternalID),
				Name:       a.Name,
				Signature:  a.Bio,
				AvatarURL:  a.AvatarURL,
			})
		}
		return records, variantExportV2, nil

	case env.Storage != nil:
		var storage struct {
			MPList json.RawMessage `json:"mpList"`
		}
		if err := json.Unmarshal(env.Storage, &storage); err != nil {
			return nil, "", fmt.Errorf("failed to parse storage: %w", err)
		}
		if storage.MPList == nil {
			return nil, variantItchatStorage, nil
		}
		records, err := decodeLegacyList(storage.MPList)
		return records, variantItchatStorage, err

	case env.MPList != nil:
		records, err := decodeLegacyList(env.MPList)
		return records, variantMPList, err
	}

	return nil, "", fmt.Errorf("unsupported account snapshot: no storage, mpList or accounts key")
}

func decodeLegacyList(data []byte) ([]record, error) {
	var accounts []legacyAccount
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse account list: %w", err)
	}

	records := make([]record, 0, len(accounts))
	for _, a := range accounts {
		records = append(records, record{
			InternalID: string(a.UserName),
			Name:       a.NickName,
			Signature:  a.Signature,
			AvatarURL:  a.HeadImgUrl,
		})
	}
	return records, nil
}

type twoWayDict struct {
	Type string `json:"__type__"`
	Dict *struct {
		Data map[string]flexString `json:"data"`
	} `json:"__dict__"`
}

func decodeMapping(data []byte) (map[string]string, variant, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty mapping snapshot")
	}

	if data[0] == '[' {
		var entries []twoWayDict
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, "", fmt.Errorf("failed to parse mapping snapshot: %w", err)
		}
		for _, entry := range entries {
			if entry.Dict != nil {
				return toStringMap(entry.Dict.Data), variantTwoWayDict, nil
			}
		}
		return nil, "", fmt.Errorf("unsupported mapping snapshot: no TwoWayDict entry")
	}
	if data[0] != '{' {
		return nil, "", fmt.Errorf("unsupported mapping snapshot: not a JSON object or array")
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, "", fmt.Errorf("failed to parse mapping snapshot: %w", err)
	}

	if raw, ok := obj["puid_map"]; ok {
		var m map[string]flexString
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, "", fmt.Errorf("failed to parse puid_map: %w", err)
		}
		return toStringMap(m), variantPUIDMap, nil
	}

	if _, ok := obj["__dict__"]; ok {
		var entry twoWayDict
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, "", fmt.Errorf("failed to parse TwoWayDict: %w", err)
		}
		if entry.Dict == nil {
			return nil, "", fmt.Errorf("unsupported mapping snapshot: empty __dict__")
		}
		return toStringMap(entry.Dict.Data), variantTwoWayDict, nil
	}

	mapping := make(map[string]string, len(obj))
	for key, raw := range obj {
		var value flexString
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, "", fmt.Errorf("unsupported mapping snapshot: value for %s: %w", strconv.Quote(key), err)
		}
		mapping[key] = string(value)
	}
	return mapping, variantFlat, nil
}

func toStringMap(m map[string]flexString) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = string(v)
	}
	return out
}
