package game

// sketchWords is the built-in prompt pool for the sketch game. Everyday
// nouns only, so any crowd can draw them.
var sketchWords = []string{
	// animals
	"dog", "cat", "elephant", "giraffe", "lion", "tiger", "penguin", "dolphin",
	"rabbit", "monkey", "bear", "snake", "turtle", "eagle", "parrot", "duck",
	"pig", "cow", "horse", "sheep", "deer", "rhino",
	// food
	"pizza", "fried chicken", "hamburger", "noodles", "sushi", "pasta",
	"ice cream", "cake", "bread", "sandwich", "french fries", "apple",
	"banana", "watermelon", "grapes", "strawberry",
	// objects
	"car", "airplane", "bicycle", "computer", "phone", "television",
	"refrigerator", "chair", "desk", "bed", "umbrella", "backpack", "shoes",
	"glasses", "watch", "camera", "piano", "guitar", "soccer ball", "pencil",
	"scissors",
	// jobs
	"doctor", "police officer", "firefighter", "teacher", "chef", "singer",
	"actor", "painter", "athlete", "astronaut",
	// places
	"school", "hospital", "park", "beach", "mountain", "library", "cinema",
	"amusement park", "zoo", "house", "apartment",
	// misc
	"sun", "moon", "star", "rainbow", "snowman", "christmas tree", "heart",
	"gift", "balloon", "robot",
}
