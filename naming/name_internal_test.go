package naming

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Name", func() {
	It("should parse name", func() {
		name := ParseName("Level[0].Door[2]")
		Expect(name.Tokens[0].ElemName).To(Equal("Level"))
		Expect(name.Tokens[0].Index).To(Equal([]int{0}))
		Expect(name.Tokens[1].ElemName).To(Equal("Door"))
		Expect(name.Tokens[1].Index).To(Equal([]int{2}))
	})

	It("should parse multi-dimensional index", func() {
		name := ParseName("Grid[0][1].Cell[3][4]")
		Expect(name.Tokens[0].Index).To(Equal([]int{0, 1}))
		Expect(name.Tokens[1].Index).To(Equal([]int{3, 4}))
	})

	It("should round trip through String", func() {
		Expect(ParseName("Grid[0][1].Cell").String()).To(Equal("Grid[0][1].Cell"))
	})

	It("should return parent and leaf", func() {
		name := ParseName("Level.Door.Hinge")
		Expect(name.Parent().String()).To(Equal("Level.Door"))
		Expect(name.Leaf().ElemName).To(Equal("Hinge"))
	})

	It("should panic if the name is empty", func() {
		Expect(func() { NameMustBeValid("") }).To(Panic())
	})

	It("should panic if name include underscore", func() {
		Expect(func() { NameMustBeValid("Door_0") }).To(Panic())
	})

	It("should panic if name include dash", func() {
		Expect(func() { NameMustBeValid("Door-0") }).To(Panic())
	})

	It("should panic if name is not capitalized CamelCase", func() {
		Expect(func() { NameMustBeValid("door") }).To(Panic())
	})

	It("should have paired square brackets", func() {
		Expect(func() { NameMustBeValid("Door[0") }).To(Panic())
		Expect(func() { NameMustBeValid("Door0]") }).To(Panic())
	})

	It("should panic if element name is empty", func() {
		Expect(func() { NameMustBeValid("Level..Door") }).To(Panic())
	})

	It("should report validity without panicking", func() {
		Expect(IsValid("Level.Door[1]")).To(BeTrue())
		Expect(IsValid("level")).To(BeFalse())
	})

	It("should build names", func() {
		Expect(BuildName("", "Level")).To(Equal("Level"))
		Expect(BuildName("Level", "Door")).To(Equal("Level.Door"))
		Expect(BuildNameWithIndex("Level", "Door", 3)).To(Equal("Level.Door[3]"))
		Expect(BuildNameWithMultiDimensionalIndex("", "Cell", []int{1, 2})).
			To(Equal("Cell[1][2]"))
	})

	It("should build a named base", func() {
		b := MakeNamedBase("Door")
		Expect(b.Name()).To(Equal("Door"))
		Expect(func() { MakeNamedBase("door") }).To(Panic())
	})
})
