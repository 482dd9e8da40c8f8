/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package models

import "time"

// UsageLogEntry records one authenticated request made with a credential.
// Entries are append-only.
type UsageLogEntry struct {
	ID           string    `json:"id" yaml:"id" db:"id"`
	CredentialID string    `json:"credentialId" yaml:"credentialId" db:"credential_id"`
	OwnerID      string    `json:"ownerId" yaml:"ownerId" db:"owner_id"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp" db:"timestamp"`
	Resource     string    `json:"resource" yaml:"resource" db:"resource"`
	Method       string    `json:"method" yaml:"method" db:"method"`
	SourceIP     string    `json:"ipAddress" yaml:"ipAddress" db:"ip_address"`
	UserAgent    string    `json:"userAgent" yaml:"userAgent" db:"user_agent"`
}

// UsageFilter selects usage log entries by credential or by owner. When both
// are set the credential id wins.
type UsageFilter struct {
	CredentialID string
	OwnerID      string
	Limit        int
}
