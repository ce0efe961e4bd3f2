package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	domainproperty "stayhub/internal/domain/property"
	"stayhub/internal/domain/shared/money"
	domainuser "stayhub/internal/domain/user"
)

// fixtureFile seeds the property and user directories for local runs.
type fixtureFile struct {
	Users      []userFixture     `json:"users"`
	Properties []propertyFixture `json:"properties"`
}

type userFixture struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type propertyFixture struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Title         string  `json:"title"`
	PricePerNight float64 `json:"pricePerNight"`
	Currency      string  `json:"currency"`
	Guests        int     `json:"guests"`
	HostEmail     string  `json:"hostEmail"`
	HostName      string  `json:"hostName"`
}

func (a *application) loadFixtures(ctx context.Context, path string, logger *slog.Logger) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if a.propertySink == nil || a.userSink == nil {
		logger.Info("store driver has read-only directories, skipping fixtures", "path", path)
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fx fixtureFile
	if err := json.Unmarshal(data, &fx); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	for _, u := range fx.Users {
		profile, err := domainuser.NewProfile(u.Email, u.Name)
		if err != nil {
			logger.Error("fixture user invalid", "email", u.Email, "error", err)
			continue
		}
		if err := a.userSink.Save(ctx, profile); err != nil {
			return fmt.Errorf("save user %s: %w", profile.Email, err)
		}
	}
	for _, p := range fx.Properties {
		prop, err := p.toProperty()
		if err != nil {
			logger.Error("fixture property invalid", "property_id", p.ID, "error", err)
			continue
		}
		if err := a.propertySink.Save(ctx, prop); err != nil {
			return fmt.Errorf("save property %s: %w", prop.Key(), err)
		}
	}
	logger.Info("fixtures imported", "users", len(fx.Users), "properties", len(fx.Properties))
	return nil
}

func (p propertyFixture) toProperty() (*domainproperty.Property, error) {
	ref, err := domainproperty.ParseRef(p.ID, p.Type)
	if err != nil {
		return nil, err
	}
	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}
	price, err := money.FromMajor(p.PricePerNight, currency)
	if err != nil {
		return nil, err
	}
	return &domainproperty.Property{
		Ref:           ref,
		Title:         p.Title,
		PricePerNight: price,
		Capacity:      p.Guests,
		HostIdentity:  domainuser.NormalizeEmail(p.HostEmail),
		HostName:      p.HostName,
	}, nil
}
