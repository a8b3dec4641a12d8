// Command postqueue runs the social publishing queue.
package main

func main() {
	Execute()
}
