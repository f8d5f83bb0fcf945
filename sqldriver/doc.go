// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package sqldriver exposes a duckarrow [duckarrow.Driver] through the
// standard database/sql package. Results are read from the Arrow record
// batches the driver streams; bound arguments are sent as a one-row
// record.
//
// Registering the driver can be done by importing this and then running
//
//	sql.Register("duckarrow", sqldriver.Driver{Driver: embedded.NewDriver(nil)})
//
// Importing sqldriver/embedded registers the embedded driver under the
// name "duckarrow".
//
// The data source name is a semicolon separated list of key=value
// database options, for example
//
//	duckarrow.engine=sqlite;uri=app.db
package sqldriver
