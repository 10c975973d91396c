package iaea

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/fisdef/internal/logger"
	"github.com/rewired-gh/fisdef/internal/models"
)

// DefaultBaseURL is the LiveChart data API.
const DefaultBaseURL = "https://nds.iaea.org/relnsd/v1"

// Client provides access to the IAEA LiveChart decay radiation API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new LiveChart client
func NewClient(baseURL string, timeout time.Duration, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// radCodes maps a radiation type to the rad_types query values. Gamma
// includes X-rays since both are photon lines of the same decay.
var radCodes = map[models.RadType][]string{
	models.Alpha:     {"a"},
	models.BetaPlus:  {"bp"},
	models.BetaMinus: {"bm"},
	models.Gamma:     {"g", "x"},
	models.XRay:      {"x"},
	models.Electron:  {"e"},
}

// Fetch retrieves every decay radiation record of the given type for the
// ground state of nuclide. A nuclide without data yields no records and no
// error.
func (c *Client) Fetch(ctx context.Context, nuclide models.Nuclide, rad models.RadType) ([]models.DecayRecord, error) {
	codes, ok := radCodes[rad]
	if !ok {
		return nil, fmt.Errorf("unsupported radiation type: %s", rad)
	}

	var records []models.DecayRecord
	for _, code := range codes {
		recs, err := c.fetchCode(ctx, nuclide, code)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s %s records: %w", nuclide.Name(), code, err)
		}
		records = append(records, recs...)
	}

	logger.Trace("Fetched %d %s records for %s", len(records), rad, nuclide.Name())
	return records, nil
}

func (c *Client) fetchCode(ctx context.Context, nuclide models.Nuclide, code string) ([]models.DecayRecord, error) {
	query := url.Values{}
	query.Set("fields", "decay_rads")
	query.Set("nuclides", fmt.Sprintf("%d%s", nuclide.MassNumber, strings.ToLower(nuclide.Element)))
	query.Set("rad_types", code)
	u := fmt.Sprintf("%s/data?%s", c.baseURL, query.Encode())

	resp, err := c.doRequest(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	records, err := ParseRecords(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return records, nil
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, u string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			delay := time.Duration(i) * c.retryDelayBase
			logger.Debug("Retrying %s in %v (attempt %d/%d): %v", u, delay, i+1, c.maxRetries, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "text/csv")
		// LiveChart rejects requests without a user agent
		req.Header.Set("User-Agent", "fisdef")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// column aliases, first match wins
var (
	colEnergy       = []string{"energy", "mean_energy"}
	colIntensity    = []string{"intensity"}
	colParentEnergy = []string{"p_energy"}
	colParentSymbol = []string{"p_symbol"}
	colParentZ      = []string{"p_z"}
	colParentN      = []string{"p_n"}
	colDecayMode    = []string{"decay", "p_decay_mode"}
	colBranching    = []string{"decay_%", "branching"}
	colHalfLife     = []string{"half_life_sec", "p_half_life_sec"}
	colDaughterSym  = []string{"d_symbol"}
	colDaughterZ    = []string{"d_z"}
	colDaughterN    = []string{"d_n"}
)

// ParseRecords decodes a LiveChart decay_rads CSV body. Columns are located by
// header name; blank or non-numeric values become undefined. An empty body
// yields no records.
func ParseRecords(r io.Reader) ([]models.DecayRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := lookupColumn(index, colEnergy); !ok {
		// the API answers unknown nuclides with a bare status value
		logger.Trace("No decay_rads columns in response header %v", header)
		return nil, nil
	}

	var records []models.DecayRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}

		field := func(names []string) string {
			i, ok := lookupColumn(index, names)
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		number := func(names []string) *float64 {
			v, err := strconv.ParseFloat(field(names), 64)
			if err != nil {
				return nil
			}
			return &v
		}

		records = append(records, models.DecayRecord{
			Parent:       nuclideName(field(colParentSymbol), field(colParentZ), field(colParentN)),
			ParentEnergy: number(colParentEnergy),
			Daughter:     nuclideName(field(colDaughterSym), field(colDaughterZ), field(colDaughterN)),
			DecayMode:    field(colDecayMode),
			Branching:    number(colBranching),
			Energy:       number(colEnergy),
			Intensity:    number(colIntensity),
			HalfLife:     number(colHalfLife),
		})
	}

	return records, nil
}

func lookupColumn(index map[string]int, names []string) (int, bool) {
	for _, n := range names {
		if i, ok := index[n]; ok {
			return i, true
		}
	}
	return 0, false
}

// nuclideName joins a symbol with the mass number Z+N, e.g. "Co60".
func nuclideName(symbol, z, n string) string {
	zi, errZ := strconv.Atoi(z)
	ni, errN := strconv.Atoi(n)
	if symbol == "" || errZ != nil || errN != nil {
		return symbol
	}
	return fmt.Sprintf("%s%d", symbol, zi+ni)
}
