// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import "fmt"

const (
	// VectorStoreChromem uses chromem-go for embedded vector storage.
	// Zero-config, no external dependencies.
	VectorStoreChromem = "chromem"

	// VectorStoreQdrant uses a Qdrant server over gRPC.
	VectorStoreQdrant = "qdrant"
)

// VectorStoreConfig configures a vector database provider.
//
// Example YAML:
//
//	vector_store:
//	  type: chromem
//	  persist_path: .sensei/vectors
//
//	vector_store:
//	  type: qdrant
//	  host: qdrant.example.com
//	  port: 6334
//	  api_key: ${QDRANT_API_KEY}
type VectorStoreConfig struct {
	// Type is the vector store type: "chromem" or "qdrant".
	Type string `yaml:"type,omitempty"`

	// Host for qdrant.
	Host string `yaml:"host,omitempty"`

	// Port for qdrant (gRPC port).
	Port int `yaml:"port,omitempty"`

	// APIKey for authenticated access.
	APIKey string `yaml:"api_key,omitempty"`

	// UseTLS enables TLS connections.
	UseTLS bool `yaml:"use_tls,omitempty"`

	// PersistPath for chromem file persistence (empty = memory only).
	PersistPath string `yaml:"persist_path,omitempty"`

	// Compress enables gzip compression for chromem persistence.
	Compress bool `yaml:"compress,omitempty"`
}

// SetDefaults applies default values.
func (c *VectorStoreConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = VectorStoreChromem // Default to embedded
	}
	if c.Type == VectorStoreQdrant {
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == 0 {
			c.Port = 6334
		}
	}
}

// Validate checks the vector store configuration.
func (c *VectorStoreConfig) Validate() error {
	switch c.Type {
	case VectorStoreChromem, VectorStoreQdrant:
	default:
		return fmt.Errorf("invalid vector store type %q (valid: chromem, qdrant)", c.Type)
	}
	return nil
}
