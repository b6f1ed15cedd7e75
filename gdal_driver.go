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
	"fmt"
	"runtime"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"
)

var gdalOnce sync.Once

// gdalLimiter 限制同时进行的GDAL数据集任务数
type gdalLimiter struct {
	slots chan struct{}
}

var (
	limiter     *gdalLimiter
	limiterOnce sync.Once
)

// gdalSlots 获取全局GDAL限流器（单例），大小为 CPU核心数*2，限定在 [4,16]
func gdalSlots() *gdalLimiter {
	limiterOnce.Do(func() {
		limiter = &gdalLimiter{slots: make(chan struct{}, limiterSize(runtime.NumCPU()))}
	})
	return limiter
}

func limiterSize(cpus int) int {
	n := cpus * 2
	if n < 4 {
		n = 4
	}
	if n > 16 {
		n = 16
	}
	return n
}

// acquire 获取工作槽
func (l *gdalLimiter) acquire() {
	l.slots <- struct{}{}
}

// release 释放工作槽
func (l *gdalLimiter) release() {
	<-l.slots
}

// ensureDrivers 注册GDAL驱动（全局只执行一次）
func ensureDrivers() {
	gdalOnce.Do(godal.RegisterAll)
}

// gdalErrorHandler 将GDAL警告写入日志，Failure及以上级别转为error返回
func gdalErrorHandler(log logrus.FieldLogger) godal.ErrorHandler {
	return func(ec godal.ErrorCategory, code int, msg string) error {
		if ec < godal.CE_Failure {
			log.WithField("gdal_code", code).Warn(msg)
			return nil
		}
		return fmt.Errorf("gdal error %d: %s", code, msg)
	}
}

// openDataset 只读打开数据集，占用一个工作槽直到 closeDataset
func openDataset(path string, log logrus.FieldLogger) (*godal.Dataset, error) {
	ensureDrivers()
	gdalSlots().acquire()
	ds, err := godal.Open(path, godal.ErrLogger(gdalErrorHandler(log)))
	if err != nil {
		gdalSlots().release()
		return nil, &ComputationError{Op: "open " + path, Err: err}
	}
	return ds, nil
}

// closeDataset 关闭数据集并释放工作槽，保留第一个出现的错误
func closeDataset(ds *godal.Dataset, errp *error) {
	defer gdalSlots().release()
	if cerr := ds.Close(); cerr != nil && *errp == nil {
		*errp = cerr
	}
}
