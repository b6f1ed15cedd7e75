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
	"github.com/sirupsen/logrus"
)

// defaultLogger 未指定日志时使用logrus全局logger
func defaultLogger() logrus.FieldLogger {
	return logrus.StandardLogger()
}

// componentLogger 为组件日志附加统一字段
func componentLogger(log logrus.FieldLogger, component string) logrus.FieldLogger {
	if log == nil {
		log = defaultLogger()
	}
	return log.WithField("component", component)
}
