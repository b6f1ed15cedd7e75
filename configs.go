/*
Copyright (C) 2025 [GrainArc]

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package xraster

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config 处理流程配置（YAML）
type Config struct {
	// Bands 按文件波段顺序排列的名称
	Bands []string `yaml:"bands"`

	Read struct {
		ChunkSize int  `yaml:"chunkSize"`
		Lazy      bool `yaml:"lazy"`
		// DefaultNoData 文件没有NoData元数据时使用
		DefaultNoData *float64 `yaml:"defaultNoData,omitempty"`
	} `yaml:"read"`

	Preprocess []ThresholdConfig `yaml:"preprocess"`

	Indices struct {
		Names  []string `yaml:"names"`
		Factor float64  `yaml:"factor"`
	} `yaml:"indices"`

	PostProcess struct {
		// SieveSize 为0时不做筛选滤波
		SieveSize    int `yaml:"sieveSize"`
		Connectivity int `yaml:"connectivity"`
		// MedianKernel 为0时不做中值滤波
		MedianKernel int `yaml:"medianKernel"`
	} `yaml:"postprocess"`
}

// ThresholdConfig 一条阈值规则，Op 为 "<" ">" "<=" ">="
type ThresholdConfig struct {
	Op       string  `yaml:"op"`
	Boundary float64 `yaml:"boundary"`
	Replace  float64 `yaml:"replace"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	cfg := &Config{
		Bands: []string{"CoastalBlue", "Blue", "Green", "Yellow", "Red", "RedEdge", "NIR1", "NIR2"},
	}
	cfg.Read.ChunkSize = DefaultChunkSize
	cfg.Indices.Factor = 1.0
	cfg.PostProcess.SieveSize = DefaultSieveSize
	cfg.PostProcess.Connectivity = DefaultConnectivity
	cfg.PostProcess.MedianKernel = DefaultMedianKernel
	return cfg
}

// LoadConfig 读取YAML配置，文件不存在时返回默认配置
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("parse %s: %v", path, err)}
	}
	return cfg, nil
}

// SaveConfig 写出YAML配置
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// LoadOptions 转换为读取选项
func (cfg *Config) LoadOptions() []LoadOption {
	opts := []LoadOption{WithChunkSize(cfg.Read.ChunkSize)}
	if cfg.Read.Lazy {
		opts = append(opts, WithLazyRead())
	}
	if cfg.Read.DefaultNoData != nil {
		opts = append(opts, WithDefaultNoData(*cfg.Read.DefaultNoData))
	}
	return opts
}

// Thresholds 解析阈值规则，运算符不合法时返回 UnsupportedOperatorError
func (cfg *Config) Thresholds() ([]Threshold, error) {
	rules := make([]Threshold, 0, len(cfg.Preprocess))
	for _, t := range cfg.Preprocess {
		op, err := ParseOperator(t.Op)
		if err != nil {
			return nil, err
		}
		rules = append(rules, Threshold{Op: op, Boundary: t.Boundary, Replace: t.Replace})
	}
	return rules, nil
}

// IndexSet 解析指数名称
func (cfg *Config) IndexSet() ([]Index, error) {
	indices := make([]Index, 0, len(cfg.Indices.Names))
	for _, name := range cfg.Indices.Names {
		idx, err := LookupIndex(name)
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	return indices, nil
}
