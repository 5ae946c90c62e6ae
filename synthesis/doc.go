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


// Package synthesis condenses documents and URLs into a single knowledge matrix.
//
// A Synthesizer runs a map-reduce over the corpus:
//
//  1. URLs (at most ten) are fetched concurrently. Failures and non-textual
//     responses become inline marker text at the URL's position.
//  2. A framing block, the document segments and the URL segments are joined
//     in input order. The governor rejects corpora above the hard ceiling and
//     truncates the rest to the soft ceiling.
//  3. The corpus is cut into fixed-size chunks (capped at MaxPartials). Each
//     chunk is summarized independently on a worker pool.
//  4. The partial summaries, in chunk order, are consolidated by one final
//     completion call into the matrix.
//
// Completion failures abort the synthesis with ErrSynthesisFailed unless
// WithTolerateMapFailures is set, in which case a failed chunk degrades to a
// gap marker. A failing consolidation call always aborts.
//
// # Usage
//
//	s, err := synthesis.NewSynthesizer(completer, fetcher,
//	    synthesis.WithBudgets(budgets),
//	    synthesis.WithModel("llama-3.3-70b-versatile"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer s.Release()
//
//	res, err := s.Synthesize(ctx, synthesis.Request{
//	    Specialty:   "KYC onboarding",
//	    Docs:        docs,
//	    URLs:        urls,
//	    Temperature: 0.2,
//	})
package synthesis
