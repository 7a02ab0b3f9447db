// Package selection turns a normalized transcript into a small set of
// ranked, non-redundant clip windows. The pass is pure and
// deterministic: candidate generation anchors windows on high-value
// transcript blocks, boundary refinement snaps them to natural speech
// breaks, and a greedy diversity step picks the final set. Virality
// scoring adds an explainable secondary score for display only.
package selection
