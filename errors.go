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
	"strings"
)

// 哨兵错误，下面每个错误类型通过 errors.Is 恰好匹配其中一个
var (
	ErrNotFound            = errors.New("xraster: not found")
	ErrConfiguration       = errors.New("xraster: configuration error")
	ErrUnsupportedOperator = errors.New("xraster: unsupported operator")
	ErrInvalidBand         = errors.New("xraster: invalid band")
	ErrComputation         = errors.New("xraster: computation failed")
	ErrWrite               = errors.New("xraster: write failed")
)

// NotFoundError 文件不存在
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s does not exist", e.Path)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConfigurationError 参数或配置不合法
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// UnsupportedOperatorError 阈值运算符不在支持的集合内
type UnsupportedOperatorError struct {
	Op string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported operator %q (supported: %s)", e.Op, strings.Join(operatorSymbols(), ", "))
}

func (e *UnsupportedOperatorError) Is(target error) bool { return target == ErrUnsupportedOperator }

// InvalidBandError 波段名称不存在，Names 列出全部缺失名称
type InvalidBandError struct {
	Names []string
}

func (e *InvalidBandError) Error() string {
	return fmt.Sprintf("band(s) not in raster: %s", strings.Join(e.Names, ", "))
}

func (e *InvalidBandError) Is(target error) bool { return target == ErrInvalidBand }

// ComputationError 计算失败（GDAL调用、指数公式、滤波），Err 为原因
type ComputationError struct {
	Op  string
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

func (e *ComputationError) Is(target error) bool { return target == ErrComputation }

// WriteError 输出栅格写入失败
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWrite }
