// Copyright 2025 Hearsay Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package source

import (
	"context"
	"fmt"

	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/storage"
)

// Unsealer opens a sealed-v1 credential blob. The concrete sealing scheme
// lives with the deployment, not this core.
type Unsealer func(blob []byte) ([]byte, error)

// RegistryResolver resolves tenant credentials from the tenant registry,
// branching on the credential's format tag. Plain credentials pass through;
// sealed-v1 credentials require an Unsealer.
type RegistryResolver struct {
	registry storage.TenantRegistry
	unsealer Unsealer
}

// ResolverOption configures a RegistryResolver.
type ResolverOption func(*RegistryResolver)

// WithUnsealer installs the function used to open sealed-v1 credentials.
func WithUnsealer(u Unsealer) ResolverOption {
	return func(r *RegistryResolver) {
		r.unsealer = u
	}
}

// NewRegistryResolver creates a resolver backed by the given tenant registry.
func NewRegistryResolver(registry storage.TenantRegistry, opts ...ResolverOption) (*RegistryResolver, error) {
	if registry == nil {
		return nil, fmt.Errorf("source: tenant registry cannot be nil")
	}
	r := &RegistryResolver{registry: registry}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the connection token for the tenant.
// The token is never logged here or anywhere downstream.
func (r *RegistryResolver) Resolve(ctx context.Context, tenantID string) (string, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return "", err
	}

	tenant, err := r.registry.GetTenant(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("source: resolving credential for tenant %s: %w", tenantID, err)
	}

	cred := tenant.Credential
	switch cred.Format {
	case core.CredentialPlain:
		return string(cred.Blob), nil
	case core.CredentialSealedV1:
		if r.unsealer == nil {
			return "", ErrSealedCredential
		}
		opened, err := r.unsealer(cred.Blob)
		if err != nil {
			return "", fmt.Errorf("source: unsealing credential for tenant %s: %w", tenantID, err)
		}
		return string(opened), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCredentialFormat, cred.Format)
	}
}
