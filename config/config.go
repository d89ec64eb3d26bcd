// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/cardinalhq/lakemerge/internal/filereader"
	"github.com/cardinalhq/lakemerge/internal/merge"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	Merge  merge.Config `mapstructure:"merge"`
	Reader ReaderConfig `mapstructure:"reader"`
}

// ReaderConfig controls how input files are read.
type ReaderConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "LAKEMERGE" and the dot character
// in keys is replaced by an underscore. For example, "merge.memory_limit"
// becomes "LAKEMERGE_MERGE_MEMORY_LIMIT".
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit configuration file, which must exist.
// An empty path looks for an optional config file in the working directory.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{
		Merge: merge.DefaultConfig(),
		Reader: ReaderConfig{
			BatchSize: filereader.DefaultBatchSize,
		},
	}

	v := viper.New()
	v.SetEnvPrefix("LAKEMERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		_ = v.ReadInConfig()
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if k := v.GetString("merge.sort_keys"); k != "" {
		cfg.Merge.SortKeys = splitKeys(k)
	}
	if err := cfg.Merge.Validate(); err != nil {
		return nil, fmt.Errorf("invalid merge configuration: %w", err)
	}
	if cfg.Reader.BatchSize < 1 {
		return nil, fmt.Errorf("reader.batch_size must be at least 1, got %d", cfg.Reader.BatchSize)
	}
	return cfg, nil
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
