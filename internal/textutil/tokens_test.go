package textutil_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ragcore/internal/textutil"
)

var _ = Describe("Tokens", func() {
	It("lowercases words and keeps contractions and numbers", func() {
		Expect(textutil.Words("Don't PANIC, it's 42!")).To(Equal([]string{"don't", "panic", "it's", "42"}))
	})

	It("drops stopwords from terms", func() {
		Expect(textutil.Terms("The cat is on the mat")).To(Equal([]string{"cat", "mat"}))
		Expect(textutil.IsStopword("the")).To(BeTrue())
		Expect(textutil.IsStopword("cat")).To(BeFalse())
	})

	It("counts distinct overlapping words", func() {
		set := textutil.WordSet("dogs bark")
		Expect(set).To(HaveLen(2))
		Expect(textutil.Overlap(set, "Dogs bark, dogs bark loudly.")).To(Equal(2))
		Expect(textutil.Overlap(set, "Cats purr.")).To(Equal(0))
	})
})
