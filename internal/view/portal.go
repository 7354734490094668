/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package view

// Portal bond: a mirror view pairs with its source through two non-owning
// references that are always set and cleared together. Neither side extends
// the other's lifetime; CloseFile breaks the bond from whichever side goes
// first.

// Portal returns this view's mirror, if any.
func (v *View) Portal() *View { return v.portal }

// Source returns the view this one mirrors, if any.
func (v *View) Source() *View { return v.source }

// SetPortal makes m the mirror of v. Existing bonds on either side are
// broken first; both directions are set together.
func (v *View) SetPortal(m *View) {
	if m == nil || m == v {
		v.ClearPortal()
		return
	}
	v.ClearPortal()
	m.clearBond()
	v.portal = m
	m.source = v
}

// ClearPortal breaks the bond v holds as a source.
func (v *View) ClearPortal() {
	if v.portal == nil {
		return
	}
	v.portal.source = nil
	v.portal = nil
}

// clearBond removes the view from any bond, in either role.
func (v *View) clearBond() {
	v.ClearPortal()
	if v.source != nil {
		v.source.portal = nil
		v.source = nil
	}
}

// MirrorLocation pushes this view's position onto its mirror. The container
// decides when propagation is wanted.
func (v *View) MirrorLocation() {
	if v.portal == nil || v.portal.state != StateReady {
		return
	}
	v.portal.GotoLocation(v.currentLocation())
}

// MirrorZoom propagates zoom to the mirror.
func (v *View) MirrorZoom() {
	if v.portal == nil || v.portal.state != StateReady {
		return
	}
	v.portal.SetZoom(v.zoom)
}
