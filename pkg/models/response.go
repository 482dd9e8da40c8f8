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

// ErrorResponse is the body of every authorization failure
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// OperationStatus discriminates OperationResponse
type OperationStatus string

const (
	OperationStatusSuccess OperationStatus = "success"
	OperationStatusPartial OperationStatus = "partial"
	OperationStatusError   OperationStatus = "error"
)

// OperationResponse is the result envelope of admin operations
type OperationResponse struct {
	Status  OperationStatus `json:"status" yaml:"status"`
	Message string          `json:"message" yaml:"message"`
	Count   *int            `json:"count,omitempty" yaml:"count,omitempty"`
	Failed  *int            `json:"failed,omitempty" yaml:"failed,omitempty"`
	Errors  []string        `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// NewSuccessResponse builds a success envelope
func NewSuccessResponse(message string) *OperationResponse {
	return &OperationResponse{Status: OperationStatusSuccess, Message: message}
}

// NewErrorResponse builds an error envelope
func NewErrorResponse(message string) *OperationResponse {
	return &OperationResponse{Status: OperationStatusError, Message: message}
}

// Principal is the identity attached to an authenticated request
type Principal struct {
	Kind         CredentialKind `json:"kind"`
	CredentialID string         `json:"credentialId,omitempty"`
	OwnerID      string         `json:"ownerId,omitempty"`
	Name         string         `json:"name,omitempty"`
	IsMaster     bool           `json:"isMaster"`
}

// MasterPrincipal is the principal for requests bearing the master passphrase
func MasterPrincipal() *Principal {
	return &Principal{Kind: CredentialKindMaster, Name: "master", IsMaster: true}
}

// PrincipalFromCredential builds the principal for a validated credential
func PrincipalFromCredential(c *Credential) *Principal {
	return &Principal{
		Kind:         c.Kind,
		CredentialID: c.ID,
		OwnerID:      c.OwnerID,
		Name:         c.Name,
	}
}
