package facebookmarketing

import (
	"strings"
	"time"

	"github.com/ajitpratap0/nebula-fbmarketing/pkg/config"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/connector/sources/facebook_marketing/streams"
	"github.com/ajitpratap0/nebula-fbmarketing/pkg/errors"
)

// Credential keys read from security.credentials
const (
	KeyAccessToken          = "access_token"
	KeyAccountID            = "account_id"
	KeyStartDate            = "start_date"
	KeyEndDate              = "end_date"
	KeyIncludeDeleted       = "include_deleted"
	KeyFetchThumbnailImages = "fetch_thumbnail_images"
	KeyAPIVersion           = "api_version"
	KeyBaseURL              = "base_url"
	KeyStreams              = "streams"
)

// Config is the validated source configuration
type Config struct {
	AccessToken          string
	AccountID            string
	StartDate            time.Time
	EndDate              time.Time
	IncludeDeleted       bool
	FetchThumbnailImages bool
	APIVersion           string
	BaseURL              string
	Kinds                []streams.EntityKind
	PageSize             int
}

// parseConfig extracts the source settings from cfg. now is the default
// end date.
func parseConfig(cfg *config.BaseConfig, now time.Time) (*Config, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	creds := &cfg.Security

	c := &Config{
		AccessToken: creds.Credential(KeyAccessToken),
		AccountID:   strings.TrimPrefix(creds.Credential(KeyAccountID), "act_"),
		APIVersion:  creds.Credential(KeyAPIVersion),
		BaseURL:     creds.Credential(KeyBaseURL),
		PageSize:    cfg.Performance.BatchSize,
	}
	if c.AccessToken == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "access_token is required")
	}
	if c.AccountID == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "account_id is required")
	}
	if c.PageSize <= 0 {
		c.PageSize = streams.DefaultPageSize
	}

	start := creds.Credential(KeyStartDate)
	if start == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "start_date is required")
	}
	var err error
	if c.StartDate, err = streams.ParseTimestamp(start); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid start_date")
	}
	c.EndDate = now.UTC()
	if end := creds.Credential(KeyEndDate); end != "" {
		if c.EndDate, err = streams.ParseTimestamp(end); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid end_date")
		}
	}
	if c.EndDate.Before(c.StartDate) {
		return nil, errors.New(errors.ErrorTypeConfig, "end_date must not precede start_date")
	}

	if c.IncludeDeleted, err = creds.CredentialBool(KeyIncludeDeleted, false); err != nil {
		return nil, err
	}
	if c.FetchThumbnailImages, err = creds.CredentialBool(KeyFetchThumbnailImages, false); err != nil {
		return nil, err
	}

	if list := creds.Credential(KeyStreams); list != "" {
		for _, name := range strings.Split(list, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			kind, ok := streams.KindForName(name)
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeConfig, "unknown stream %q", name)
			}
			c.Kinds = append(c.Kinds, kind)
		}
	}
	if len(c.Kinds) == 0 {
		c.Kinds = append(c.Kinds, streams.Kinds...)
	}
	return c, nil
}
