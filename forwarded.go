package unxf

import (
	"fmt"
	"strings"
)

// forwardedChain is the hop list and declared protocol carried by one or more
// RFC 7239 Forwarded header values.
type forwardedChain struct {
	hops  []string
	proto string
}

// parseForwarded extracts the for= chain of a Forwarded header value.
//
// Elements are processed in wire order. Elements without a for parameter are
// ignored. The proto parameter of the first element carrying a for parameter
// is kept, as that element was added by the client-facing proxy.
func parseForwarded(value string) (forwardedChain, error) {
	chain := forwardedChain{hops: make([]string, 0, typicalChainCapacity)}
	first := true

	err := scanForwardedSegments(value, ',', func(element string) error {
		params, parseErr := parseForwardedElement(element)
		if parseErr != nil {
			return parseErr
		}
		if !params.hasFor {
			return nil
		}

		chain.hops = append(chain.hops, params.forValue)
		if first {
			chain.proto = params.proto
			first = false
		}
		return nil
	})
	if err != nil {
		return forwardedChain{}, fmt.Errorf("%w: %w", ErrInvalidForwardedHeader, err)
	}

	return chain, nil
}

type forwardedParams struct {
	forValue string
	hasFor   bool
	proto    string
}

// parseForwardedElement parses a single Forwarded element and returns its for
// and proto parameters.
//
// It allows arbitrary additional parameters, treats parameter names
// case-insensitively, and rejects duplicate for or proto parameters in the
// same element.
func parseForwardedElement(element string) (forwardedParams, error) {
	var (
		params   forwardedParams
		hasProto bool
	)

	err := scanForwardedSegments(element, ';', func(param string) error {
		eq := strings.IndexByte(param, '=')
		if eq <= 0 {
			return fmt.Errorf("invalid forwarded parameter %q", param)
		}

		key := strings.TrimSpace(param[:eq])
		value := strings.TrimSpace(param[eq+1:])
		if key == "" {
			return fmt.Errorf("empty parameter key in %q", param)
		}
		if value == "" {
			return fmt.Errorf("empty parameter value for %q", key)
		}

		switch {
		case strings.EqualFold(key, "for"):
			if params.hasFor {
				return fmt.Errorf("duplicate for parameter in element %q", element)
			}

			parsed, parseErr := parseForwardedValue(value)
			if parseErr != nil {
				return parseErr
			}
			params.forValue = parsed
			params.hasFor = true
		case strings.EqualFold(key, "proto"):
			if hasProto {
				return fmt.Errorf("duplicate proto parameter in element %q", element)
			}

			parsed, parseErr := parseForwardedValue(value)
			if parseErr != nil {
				return parseErr
			}
			params.proto = parsed
			hasProto = true
		}
		return nil
	})
	if err != nil {
		return forwardedParams{}, err
	}

	return params, nil
}

// scanForwardedSegments splits value by delimiter while respecting quoted
// segments and escape sequences inside quoted strings.
func scanForwardedSegments(value string, delimiter byte, onSegment func(string) error) error {
	start := 0
	inQuotes := false
	escaped := false

	for i := 0; i <= len(value); i++ {
		if i == len(value) {
			if inQuotes {
				return fmt.Errorf("unterminated quoted string in %q", value)
			}
			if escaped {
				return fmt.Errorf("unterminated escape in %q", value)
			}
		} else {
			ch := value[i]

			if escaped {
				escaped = false
				continue
			}

			if ch == '\\' && inQuotes {
				escaped = true
				continue
			}

			if ch == '"' {
				inQuotes = !inQuotes
				continue
			}

			if ch != delimiter || inQuotes {
				continue
			}
		}

		segment := strings.TrimSpace(value[start:i])
		if segment != "" {
			if err := onSegment(segment); err != nil {
				return err
			}
		}

		start = i + 1
	}

	return nil
}

// parseForwardedValue parses a Forwarded parameter value, which may be an
// unquoted token or a quoted string.
func parseForwardedValue(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("empty value")
	}

	if value[0] == '"' {
		unquoted, err := unquoteForwardedValue(value)
		if err != nil {
			return "", err
		}
		value = strings.TrimSpace(unquoted)
	}

	if value == "" {
		return "", fmt.Errorf("empty value")
	}

	return value, nil
}

// unquoteForwardedValue removes surrounding quotes from a Forwarded quoted
// string and resolves backslash escapes.
func unquoteForwardedValue(value string) (string, error) {
	if len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
		return "", fmt.Errorf("invalid quoted string %q", value)
	}

	inner := value[1 : len(value)-1]
	if strings.IndexByte(inner, '\\') == -1 {
		if strings.IndexByte(inner, '"') != -1 {
			return "", fmt.Errorf("unexpected quote in %q", value)
		}

		return inner, nil
	}

	var b strings.Builder
	b.Grow(len(inner))
	escaped := false

	for i := 1; i < len(value)-1; i++ {
		ch := value[i]

		if escaped {
			b.WriteByte(ch)
			escaped = false
			continue
		}

		if ch == '\\' {
			escaped = true
			continue
		}

		if ch == '"' {
			return "", fmt.Errorf("unexpected quote in %q", value)
		}

		b.WriteByte(ch)
	}

	if escaped {
		return "", fmt.Errorf("unterminated escape in %q", value)
	}

	return b.String(), nil
}
