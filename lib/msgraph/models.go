// GraphScope
// Copyright (C) 2025 Gravitational, Inc.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package msgraph

// DirectoryMember is a single member record returned by the group member
// listing. Graph returns users, devices and rooms alike through this
// endpoint; the @odata.type discriminator is carried along so callers can
// tell them apart without a subtype hierarchy.
type DirectoryMember struct {
	ID                string `json:"id"`
	Mail              string `json:"mail,omitempty"`
	DisplayName       string `json:"displayName,omitempty"`
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
	Type              string `json:"@odata.type,omitempty"`
}

// Place is an entry of the Graph places catalogue.
type Place struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Capacity     *int   `json:"capacity,omitempty"`
	Building     string `json:"building,omitempty"`
	FloorLabel   string `json:"floorLabel,omitempty"`
	Label        string `json:"label,omitempty"`
}

// Location derives a human-readable location from the place fields, most
// specific part first. Returns "" when the catalogue has none.
func (p *Place) Location() string {
	switch {
	case p.Building != "" && p.FloorLabel != "":
		return p.Building + ", " + p.FloorLabel
	case p.Building != "":
		return p.Building
	case p.FloorLabel != "":
		return p.FloorLabel
	default:
		return p.Label
	}
}
