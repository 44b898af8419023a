package event

import (
	"fmt"

	"crypto_dash/internal/domain"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the wire form of an action: {"type": ..., "payload": {...}}.
type Envelope struct {
	Type    Type                `json:"type"`
	Payload jsoniter.RawMessage `json:"payload,omitempty"`
}

// Encode serializes an action into its envelope.
func Encode(a Action) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", a.ActionType(), err)
	}
	return json.Marshal(Envelope{Type: a.ActionType(), Payload: payload})
}

// Decode parses an envelope back into a concrete action value.
func Decode(data []byte) (Action, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return DecodeEnvelope(env)
}

// DecodeEnvelope resolves env.Type and unmarshals the payload into it.
func DecodeEnvelope(env Envelope) (Action, error) {
	var (
		a   Action
		err error
	)
	switch env.Type {
	case TypeLoadRequested:
		a = LoadRequested{}
	case TypeRetryRequested:
		a = RetryRequested{}
	case TypeLoadSucceeded:
		var v LoadSucceeded
		err = unmarshalPayload(env, &v)
		a = v
	case TypeLoadFailed:
		var v LoadFailed
		err = unmarshalPayload(env, &v)
		a = v
	case TypePricesUpdated:
		var v PricesUpdated
		err = unmarshalPayload(env, &v)
		a = v
	case TypeSearchQuerySet:
		var v SearchQuerySet
		err = unmarshalPayload(env, &v)
		a = v
	case TypeAssetSelectionToggled:
		var v AssetSelectionToggled
		if err = unmarshalPayload(env, &v); err == nil && v.AssetID == "" {
			err = fmt.Errorf("%s: assetId is required", env.Type)
		}
		a = v
	case TypeSortingSet:
		var v SortingSet
		if err = unmarshalPayload(env, &v); err == nil {
			err = validateSorting(v)
		}
		a = v
	case TypePriceUpdateFailed:
		var v PriceUpdateFailed
		err = unmarshalPayload(env, &v)
		a = v
	case TypeSearchTooShort:
		var v SearchTooShort
		err = unmarshalPayload(env, &v)
		a = v
	case TypeSearchResults:
		var v SearchResults
		err = unmarshalPayload(env, &v)
		a = v
	case TypeSearchFailed:
		var v SearchFailed
		err = unmarshalPayload(env, &v)
		a = v
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAction, env.Type)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func unmarshalPayload(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}

func validateSorting(v SortingSet) error {
	if _, err := domain.ParseSortField(string(v.SortBy)); err != nil {
		return err
	}
	if v.SortOrder == "" {
		return nil
	}
	_, err := domain.ParseSortOrder(string(v.SortOrder))
	return err
}
