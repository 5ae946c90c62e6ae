// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package governor holds the size and cost policy applied to synthesis input.
//
// Everything here is pure: no state, no I/O. Lengths are counted in Unicode
// code points, so a limit never splits a multi-byte character.
//
// Two ceilings exist side by side:
//
//   - A soft ceiling, Budgets.MaxTotalChars, to which the assembled corpus is
//     silently truncated.
//   - A hard ceiling of twice that value, enforced by GuardPayloadSize, which
//     rejects grossly oversized requests before any chunking or LLM spend.
package governor
